// Package reservetransfer implements the atomic, immutable user-level
// transfer record of spec.md §3/§4.B: the thing a user's RESERVE_TRANSFER
// output carries, and that the exporter (package export) batches and the
// importer (package importer) consumes.
package reservetransfer

import (
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// Flag is a bit in the ReserveTransfer flag set (spec.md §3).
type Flag uint32

const (
	// FlagPreconvert marks a pre-launch preconversion.
	FlagPreconvert Flag = 1 << iota
	// FlagBurnChangePrice marks a mint/burn that changes a reserve weight,
	// restricted to centralized, non-prelaunch currencies (spec.md §4.A).
	FlagBurnChangePrice
	// FlagMintCurrency marks a controller-authorized mint.
	FlagMintCurrency
	// FlagCrossSystem marks a transfer whose destination lives on another system.
	FlagCrossSystem
	// FlagImportToSource swaps the usual destCurrencyID interpretation
	// (spec.md §4.B): the transfer is imported back toward its source.
	FlagImportToSource
	// FlagReserveToReserve marks a two-reserve conversion (via the primary currency).
	FlagReserveToReserve
	// FlagCurrencyExport carries a full CurrencyDefinition in its destination
	// for cross-system definition propagation (spec.md §4.I).
	FlagCurrencyExport
	// FlagIdentityExport carries identity authorization data cross-system.
	FlagIdentityExport
	// FlagArbitrageOnly marks the single arbitrage transfer component 4.J may
	// inject into an import batch.
	FlagArbitrageOnly
	// FlagHasNextLeg marks a transfer whose destination specifies a further
	// gateway leg after this one completes.
	FlagHasNextLeg
)

// Has reports whether f is set in flags.
func (flags Flag) Has(f Flag) bool { return flags&f != 0 }

// Size ceilings, in serialized bytes, enforced before any batch admits a
// transfer (spec.md §3). A currency-export transfer carries a full
// CurrencyDefinition in its destination and so gets a far larger ceiling
// than a normal transfer; an identity-export transfer sits between the two.
const (
	MaxNormalTransferSize   = 1024
	MaxCurrencyExportSize   = 16384
	MaxIdentityExportSize   = 4096
)

// MaxReserveValues is the most distinct currencies a single transfer's
// reserveValues map may hold: one for an ordinary conversion, two for
// RESERVE_TO_RESERVE (source reserve and secondReserveID).
const MaxReserveValues = 2

// ReserveTransfer is the immutable, validated-at-creation transfer record.
// Nothing in this package mutates a ReserveTransfer after NewReserveTransfer
// returns it successfully; export and importer both treat it as a value.
type ReserveTransfer struct {
	flags           Flag
	feeCurrencyID   chainhash.ID
	nFees           int64
	reserveValues   map[chainhash.ID]int64
	destCurrencyID  chainhash.ID
	destSystemID    chainhash.ID
	secondReserveID chainhash.ID
	dest            destination.Destination
}

// Params bundles the constructor arguments for NewReserveTransfer.
type Params struct {
	Flags           Flag
	FeeCurrencyID   chainhash.ID
	NFees           int64
	ReserveValues   map[chainhash.ID]int64
	DestCurrencyID  chainhash.ID
	DestSystemID    chainhash.ID
	SecondReserveID chainhash.ID
	Destination     destination.Destination
}

// NewReserveTransfer validates p and, on success, returns the immutable
// record. Validation failures are spec.md §7 ValidationFailure: surfaced to
// the caller, never retried automatically.
func NewReserveTransfer(p Params) (*ReserveTransfer, error) {
	rt := &ReserveTransfer{
		flags:           p.Flags,
		feeCurrencyID:   p.FeeCurrencyID,
		nFees:           p.NFees,
		reserveValues:   copyValues(p.ReserveValues),
		destCurrencyID:  p.DestCurrencyID,
		destSystemID:    p.DestSystemID,
		secondReserveID: p.SecondReserveID,
		dest:            p.Destination,
	}
	if err := rt.validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

func copyValues(in map[chainhash.ID]int64) map[chainhash.ID]int64 {
	out := make(map[chainhash.ID]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (rt *ReserveTransfer) validate() error {
	if rt.nFees < 0 {
		return errors.New("reservetransfer: negative fee amount")
	}
	if len(rt.reserveValues) == 0 {
		return errors.New("reservetransfer: no reserve values")
	}
	if len(rt.reserveValues) > MaxReserveValues {
		return errors.Errorf("reservetransfer: %d reserve values exceeds max %d", len(rt.reserveValues), MaxReserveValues)
	}
	for cur, amount := range rt.reserveValues {
		if amount <= 0 {
			return errors.Errorf("reservetransfer: non-positive amount for currency %s", cur)
		}
	}
	if !rt.dest.IsValid() {
		return errors.New("reservetransfer: invalid destination")
	}

	// Arbitrage cannot coexist with export / cross-system / conversion
	// flags (spec.md §3). Arbitrage transfers are themselves two-reserve
	// conversions routed through the primary currency, so FlagReserveToReserve
	// is expected alongside FlagArbitrageOnly rather than conflicting with it.
	if rt.flags.Has(FlagArbitrageOnly) {
		conflicting := FlagCurrencyExport | FlagIdentityExport | FlagCrossSystem |
			FlagPreconvert | FlagBurnChangePrice | FlagMintCurrency
		if rt.flags&conflicting != 0 {
			return errors.New("reservetransfer: arbitrage flag cannot coexist with export/cross-system/conversion flags")
		}
	}

	if rt.flags.Has(FlagReserveToReserve) && len(rt.reserveValues) != 2 {
		return errors.New("reservetransfer: reserve-to-reserve requires exactly two reserve values")
	}
	if rt.flags.Has(FlagReserveToReserve) {
		if _, ok := rt.reserveValues[rt.secondReserveID]; !ok {
			return errors.New("reservetransfer: secondReserveID not present in reserveValues")
		}
	}

	if rt.flags.Has(FlagCurrencyExport) && rt.EstimatedSerializedSize() > MaxCurrencyExportSize {
		return errors.Errorf("reservetransfer: currency-export transfer exceeds max size %d", MaxCurrencyExportSize)
	}
	if rt.flags.Has(FlagIdentityExport) && rt.EstimatedSerializedSize() > MaxIdentityExportSize {
		return errors.Errorf("reservetransfer: identity-export transfer exceeds max size %d", MaxIdentityExportSize)
	}
	if !rt.flags.Has(FlagCurrencyExport) && !rt.flags.Has(FlagIdentityExport) &&
		rt.EstimatedSerializedSize() > MaxNormalTransferSize {
		return errors.Errorf("reservetransfer: transfer exceeds max size %d", MaxNormalTransferSize)
	}

	if rt.flags.Has(FlagPreconvert) && rt.flags.Has(FlagCrossSystem) {
		// Preconversions are always same-chain at the launching system;
		// the launch system only becomes "cross" after ClearLaunch.
		return errors.New("reservetransfer: preconvert cannot be cross-system")
	}

	return nil
}

// Flags returns the transfer's flag set.
func (rt *ReserveTransfer) Flags() Flag { return rt.flags }

// FeeCurrencyID returns the currency the nFees fee is denominated in.
func (rt *ReserveTransfer) FeeCurrencyID() chainhash.ID { return rt.feeCurrencyID }

// NFees returns the fee amount in feeCurrencyID.
func (rt *ReserveTransfer) NFees() int64 { return rt.nFees }

// ReserveValues returns a copy of the currency->amount map being transferred.
func (rt *ReserveTransfer) ReserveValues() map[chainhash.ID]int64 { return copyValues(rt.reserveValues) }

// DestCurrencyID returns the nominal destination currency.
func (rt *ReserveTransfer) DestCurrencyID() chainhash.ID { return rt.destCurrencyID }

// DestSystemID returns the nominal destination system.
func (rt *ReserveTransfer) DestSystemID() chainhash.ID { return rt.destSystemID }

// SecondReserveID returns the second reserve currency for RESERVE_TO_RESERVE transfers.
func (rt *ReserveTransfer) SecondReserveID() chainhash.ID { return rt.secondReserveID }

// Destination returns the typed recipient.
func (rt *ReserveTransfer) Destination() destination.Destination { return rt.dest }

// IsImportToSource reports whether this transfer swaps the usual
// destCurrencyID interpretation: rather than importing into destCurrencyID,
// it imports back toward the transfer's reserve source (spec.md §4.B).
func (rt *ReserveTransfer) IsImportToSource() bool {
	return rt.flags.Has(FlagImportToSource)
}

// TargetCurrencyAndSystem returns the unambiguous (currency, system) pair
// this transfer targets, honoring IsImportToSource (spec.md §4.B: "A
// transfer identifies its target currency and system unambiguously").
func (rt *ReserveTransfer) TargetCurrencyAndSystem() (currencyID, systemID chainhash.ID) {
	if rt.IsImportToSource() {
		for cur := range rt.reserveValues {
			return cur, rt.destSystemID
		}
	}
	return rt.destCurrencyID, rt.destSystemID
}

// TotalCurrencyOut returns every currency-denominated amount this transfer
// removes from its sender: the reserveValues and the (feeCurrencyID, nFees)
// fee (spec.md §4.B). Cross-system transfers get no separate native-fee
// leg; only a zero entry for destSystemID is added.
func (rt *ReserveTransfer) TotalCurrencyOut() map[chainhash.ID]int64 {
	out := copyValues(rt.reserveValues)
	out[rt.feeCurrencyID] += rt.nFees
	if rt.flags.Has(FlagCrossSystem) {
		out[rt.destSystemID] += 0 // the native-fee leg is accounted in nFees/feeCurrencyID
	}
	return out
}

// EstimatedSerializedSize approximates the wire size of the transfer for
// the ceiling checks in validate(): a fixed header plus one slot per
// reserve value plus the destination payload (and its aux destinations).
func (rt *ReserveTransfer) EstimatedSerializedSize() int {
	const headerSize = 4 + chainhash.IDSize*3 + 8 // flags + feeCurrencyID + destCurrencyID + destSystemID + nFees
	const perReserveValue = chainhash.IDSize + 8
	size := headerSize + len(rt.reserveValues)*perReserveValue
	size += len(rt.dest.Bytes) + 1
	for _, aux := range rt.dest.Aux {
		size += len(aux.Bytes) + 1
	}
	return size
}
