package reservedeposit

import (
	"encoding/binary"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// Store is the authoritative reserve-deposit escrow: one running balance
// per (controllingID, assetID) pair, overwritten in place by every Credit
// and Debit (no history is kept), aggregated into a
// single logical output per currency to prevent fragmentation (spec.md
// §4.C). It is keyed content-addressably the way spec.md §6 describes the
// on-chain (controllingCurrencyID || ReserveDepositKey) index.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the leveldb-backed store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "reservedeposit: opening store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func depositKey(controllingID, assetID chainhash.ID) []byte {
	key := make([]byte, 0, chainhash.IDSize*2)
	key = append(key, controllingID[:]...)
	key = append(key, assetID[:]...)
	return key
}

func prefixKey(controllingID chainhash.ID) []byte {
	return append([]byte(nil), controllingID[:]...)
}

// Balance returns the current escrowed amount of assetID held for controllingID.
func (s *Store) Balance(controllingID, assetID chainhash.ID) (int64, error) {
	val, err := s.db.Get(depositKey(controllingID, assetID), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reservedeposit: reading balance")
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

// BalanceAll returns every asset balance escrowed for controllingID.
func (s *Store) BalanceAll(controllingID chainhash.ID) (map[chainhash.ID]int64, error) {
	out := map[chainhash.ID]int64{}
	iter := s.db.NewIterator(util.BytesPrefix(prefixKey(controllingID)), nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if len(key) != chainhash.IDSize*2 {
			continue
		}
		var assetID chainhash.ID
		copy(assetID[:], key[chainhash.IDSize:])
		out[assetID] = int64(binary.BigEndian.Uint64(iter.Value()))
	}
	return out, iter.Error()
}

// Credit increases the escrowed balance of assetID for controllingID by
// amount, as an export sending currency off-chain does (spec.md §3,
// ReserveDeposit lifecycle: "created by every export that sends currency
// off-chain").
func (s *Store) Credit(controllingID, assetID chainhash.ID, amount int64) error {
	if amount < 0 {
		return errors.New("reservedeposit: negative credit amount")
	}
	return s.adjust(controllingID, assetID, amount)
}

// Debit decreases the escrowed balance of assetID for controllingID by
// amount, as an import consuming escrow does (spec.md §3: "consumed (fully
// or partially) by the matching import"). It fails if the balance would go
// negative — that would mean the chain's own consensus-validated escrow is
// inconsistent, an Internal error (spec.md §7), not a validation failure.
func (s *Store) Debit(controllingID, assetID chainhash.ID, amount int64) error {
	if amount < 0 {
		return errors.New("reservedeposit: negative debit amount")
	}
	current, err := s.Balance(controllingID, assetID)
	if err != nil {
		return err
	}
	if current < amount {
		return errors.Errorf("reservedeposit: debit %d exceeds escrowed balance %d for controller %s asset %s",
			amount, current, controllingID, assetID)
	}
	return s.adjust(controllingID, assetID, -amount)
}

func (s *Store) adjust(controllingID, assetID chainhash.ID, delta int64) error {
	current, err := s.Balance(controllingID, assetID)
	if err != nil {
		return err
	}
	next := current + delta
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := s.db.Put(depositKey(controllingID, assetID), buf, nil); err != nil {
		return errors.Wrap(err, "reservedeposit: writing balance")
	}
	return nil
}
