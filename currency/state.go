package currency

import "github.com/pbaaschain/pbaasd/internal/chainhash"

// StateFlags is the CoinbaseCurrencyState flag bitset (spec.md §3), tracking
// the launch state machine of component F.
type StateFlags uint32

const (
	StateFlagPreLaunch StateFlags = 1 << iota
	StateFlagLaunchClear
	StateFlagLaunchConfirmed
	StateFlagLaunchComplete
	StateFlagRefunding
)

// Has reports whether f is set.
func (flags StateFlags) Has(f StateFlags) bool { return flags&f != 0 }

// State is a CoinbaseCurrencyState notarization payload (spec.md §3): the
// reserves/supply/prices of a currency as of one notarized height, and the
// per-batch deltas (reserveIn/reserveOut/fees/etc.) that produced it.
type State struct {
	Currencies []chainhash.ID // parallel to every per-reserve slice below

	Reserves  []int64
	ReserveIn []int64
	ReserveOut []int64

	PrimaryCurrencyOut  int64
	PrimaryCurrencyIn   int64
	PrimaryCurrencyFees int64

	Supply int64

	Weights          []float64
	PriorWeights     []float64
	ConversionPrice  []float64
	ViaConversionPrice []float64

	Fees           []int64
	ConversionFees []int64

	Emitted int64
	Flags   StateFlags
}

// Clone returns a deep copy of s so callers can produce a stateOut without
// aliasing the stateIn slices (component A must never mutate its input).
func (s *State) Clone() *State {
	out := &State{
		PrimaryCurrencyOut:  s.PrimaryCurrencyOut,
		PrimaryCurrencyIn:   s.PrimaryCurrencyIn,
		PrimaryCurrencyFees: s.PrimaryCurrencyFees,
		Supply:              s.Supply,
		Emitted:             s.Emitted,
		Flags:               s.Flags,
	}
	out.Currencies = append(out.Currencies, s.Currencies...)
	out.Reserves = append(out.Reserves, s.Reserves...)
	out.ReserveIn = append(out.ReserveIn, s.ReserveIn...)
	out.ReserveOut = append(out.ReserveOut, s.ReserveOut...)
	out.Weights = append(out.Weights, s.Weights...)
	out.PriorWeights = append(out.PriorWeights, s.PriorWeights...)
	out.ConversionPrice = append(out.ConversionPrice, s.ConversionPrice...)
	out.ViaConversionPrice = append(out.ViaConversionPrice, s.ViaConversionPrice...)
	out.Fees = append(out.Fees, s.Fees...)
	out.ConversionFees = append(out.ConversionFees, s.ConversionFees...)
	return out
}

// ReserveIndex returns the index of reserveID within s.Currencies, or -1.
func (s *State) ReserveIndex(reserveID chainhash.ID) int {
	for i, id := range s.Currencies {
		if id == reserveID {
			return i
		}
	}
	return -1
}

// ProofRoot is the read-only, notary-produced commitment to a remote
// system's state (spec.md §3): {systemID, rootHeight, blockHash, stateRoot,
// [gasPrice for ETH-like]}.
type ProofRoot struct {
	SystemID   chainhash.ID
	RootHeight uint64
	BlockHash  chainhash.Hash
	StateRoot  chainhash.Hash
	GasPrice   uint64 // only meaningful when ProofProtocol == ProofProtocolETHNotarization
}

// Notarization is a PBaaSNotarization: a chain-state commitment one system
// records about another (or about itself, at launch), carrying the trust
// anchor proofs root in (spec.md §3).
type Notarization struct {
	CurrencyID         chainhash.ID
	NotarizationHeight uint64
	PrevNotarization   *chainhash.Hash
	State              *State

	// ProofRoots is populated only for cross-system notarizations: the
	// latest confirmed ProofRoot of each remote system as of this
	// notarization (spec.md §3).
	ProofRoots map[chainhash.ID]ProofRoot
}
