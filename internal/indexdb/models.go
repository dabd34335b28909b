// Package indexdb mirrors the content-addressed on-chain indexes spec.md §6
// lists (CurrencyExportKey, SystemExportKey, LaunchNotarizationKey,
// DefinitionNotarizationKey, ReserveDepositKey) into a relational read side,
// so RPC lookups don't have to replay the chain on every query.
package indexdb

// CurrencyExportRecord mirrors one `(destCurrencyID || CurrencyExportKey) →
// export outputs` entry (spec.md §6).
type CurrencyExportRecord struct {
	ID               uint64 `gorm:"primary_key"`
	DestCurrencyID   string `gorm:"type:char(40);index;not null"`
	SourceSystemID   string `gorm:"type:char(40);not null"`
	DestSystemID     string `gorm:"type:char(40);not null"`
	SourceHeightStart uint64 `gorm:"not null"`
	SourceHeightEnd   uint64 `gorm:"not null"`
	TxID             string `gorm:"type:char(64);index;not null"`
	TxOutNum         uint32 `gorm:"not null"`
	HashReserveTransfers string `gorm:"type:char(64);not null"`
	Flags            uint32 `gorm:"not null"`
}

// TableName pins the table name so migrations and gorm agree regardless of
// gorm's pluralization rules.
func (CurrencyExportRecord) TableName() string { return "currency_exports" }

// SystemExportRecord mirrors one `(destSystemID || SystemExportKey) →
// system-thread export outputs` entry (spec.md §6).
type SystemExportRecord struct {
	ID           uint64 `gorm:"primary_key"`
	DestSystemID string `gorm:"type:char(40);index;not null"`
	TxID         string `gorm:"type:char(64);index;not null"`
	TxOutNum     uint32 `gorm:"not null"`
}

func (SystemExportRecord) TableName() string { return "system_exports" }

// NotarizationKind distinguishes the two notarization indexes spec.md §6
// names: LaunchNotarizationKey and DefinitionNotarizationKey.
type NotarizationKind uint8

const (
	NotarizationKindLaunch NotarizationKind = iota
	NotarizationKindDefinition
)

// NotarizationRecord mirrors one `(currencyID || LaunchNotarizationKey)` or
// `DefinitionNotarizationKey` entry (spec.md §6).
type NotarizationRecord struct {
	ID                 uint64 `gorm:"primary_key"`
	CurrencyID         string `gorm:"type:char(40);index;not null"`
	Kind               NotarizationKind `gorm:"not null"`
	NotarizationHeight uint64 `gorm:"not null"`
	TxID               string `gorm:"type:char(64);index;not null"`
	TxOutNum           uint32 `gorm:"not null"`
}

func (NotarizationRecord) TableName() string { return "notarizations" }

// ReserveDepositRecord mirrors one `(controllingCurrencyID ||
// ReserveDepositKey) → reserve deposit outputs` entry (spec.md §6).
type ReserveDepositRecord struct {
	ID                   uint64 `gorm:"primary_key"`
	ControllingCurrencyID string `gorm:"type:char(40);index;not null"`
	AssetID              string `gorm:"type:char(40);index;not null"`
	Balance              int64  `gorm:"not null"`
	TxID                 string `gorm:"type:char(64);not null"`
	TxOutNum             uint32 `gorm:"not null"`
}

func (ReserveDepositRecord) TableName() string { return "reserve_deposits" }
