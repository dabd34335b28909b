package indexdb

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pkg/errors"
)

// DB is the read-side mirror's connection, mirroring apiserver/database's
// process-global DB handle pattern but scoped to one engine instance rather
// than a package-level singleton.
type DB struct {
	gormDB *gorm.DB
}

// Config names the connection parameters, grounded on the DSN shape the
// teacher's apiserver/kasparov database config packages expose.
type Config struct {
	DSN            string
	MigrationsPath string
}

// Connect opens the gorm connection and runs pending migrations from
// cfg.MigrationsPath before returning.
func Connect(cfg Config) (*DB, error) {
	gormDB, err := gorm.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "indexdb: opening database connection")
	}
	gormDB.SingularTable(true)

	if err := migrateUp(cfg); err != nil {
		gormDB.Close()
		return nil, err
	}

	return &DB{gormDB: gormDB}, nil
}

func migrateUp(cfg Config) error {
	sqlDB, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return errors.Wrap(err, "indexdb: opening raw connection for migrations")
	}
	defer sqlDB.Close()

	driver, err := migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	if err != nil {
		return errors.Wrap(err, "indexdb: building migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", cfg.MigrationsPath), "pbaasd", driver)
	if err != nil {
		return errors.Wrap(err, "indexdb: building migrator")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "indexdb: running migrations")
	}
	return nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.gormDB.Close()
}

// GORM exposes the underlying *gorm.DB for queries, mirroring the teacher's
// apiserver.database.DB() accessor pattern.
func (d *DB) GORM() *gorm.DB {
	return d.gormDB
}

// UpsertCurrencyExport records or updates the read-side mirror of a
// committed CrossChainExport (spec.md §6 CurrencyExportKey index).
func (d *DB) UpsertCurrencyExport(rec *CurrencyExportRecord) error {
	return d.gormDB.Where(CurrencyExportRecord{TxID: rec.TxID, TxOutNum: rec.TxOutNum}).
		Assign(rec).
		FirstOrCreate(&CurrencyExportRecord{}).Error
}

// LatestCurrencyExport returns the most recent export recorded for
// destCurrencyID, or nil if none.
func (d *DB) LatestCurrencyExport(destCurrencyID string) (*CurrencyExportRecord, error) {
	rec := &CurrencyExportRecord{}
	result := d.gormDB.Where("dest_currency_id = ?", destCurrencyID).
		Order("source_height_end desc").
		First(rec)
	if result.RecordNotFound() {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "indexdb: querying latest currency export")
	}
	return rec, nil
}

// UpsertReserveDeposit records or updates the read-side mirror of one
// escrow balance (spec.md §6 ReserveDepositKey index).
func (d *DB) UpsertReserveDeposit(rec *ReserveDepositRecord) error {
	return d.gormDB.Where(ReserveDepositRecord{ControllingCurrencyID: rec.ControllingCurrencyID, AssetID: rec.AssetID}).
		Assign(rec).
		FirstOrCreate(&ReserveDepositRecord{}).Error
}
