// Package launch implements component F: the pre-launch -> clear-launch ->
// post-launch -> refunding state machine gating exports and imports (spec.md
// §4.F).
package launch

import (
	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pkg/errors"
)

// Phase is a currency's position in the launch state machine.
type Phase uint8

const (
	PhasePreLaunch Phase = iota
	PhaseClearLaunch
	PhasePostLaunch
	PhaseRefunding
)

func (p Phase) String() string {
	switch p {
	case PhasePreLaunch:
		return "pre-launch"
	case PhaseClearLaunch:
		return "clear-launch"
	case PhasePostLaunch:
		return "post-launch"
	case PhaseRefunding:
		return "refunding"
	default:
		return "unknown"
	}
}

// PhaseFromState derives the current phase from a CoinbaseCurrencyState's
// flags (spec.md §3, §4.F).
func PhaseFromState(s *currency.State) Phase {
	switch {
	case s.Flags.Has(currency.StateFlagRefunding):
		return PhaseRefunding
	case s.Flags.Has(currency.StateFlagLaunchComplete):
		return PhasePostLaunch
	case s.Flags.Has(currency.StateFlagLaunchClear):
		return PhaseClearLaunch
	default:
		return PhasePreLaunch
	}
}

// IsPreLaunch reports whether height has not yet reached def.StartBlock.
func IsPreLaunch(def *currency.Definition, height uint64) bool {
	return height < def.StartBlock
}

// CrossesStartBlock reports whether the half-open height range
// [heightStart, heightEnd) crosses def.StartBlock — the export that must be
// flagged CLEAR_LAUNCH regardless of size (spec.md §4.D step 4).
func CrossesStartBlock(def *currency.Definition, heightStart, heightEnd uint64) bool {
	return heightStart < def.StartBlock && heightEnd >= def.StartBlock
}

// ValidatePreLaunchTransfer rejects anything but a PRECONVERT transfer whose
// fee currency is the launch system, per spec.md §4.F PreLaunch rules.
func ValidatePreLaunchTransfer(def *currency.Definition, rt *reservetransfer.ReserveTransfer) error {
	if !rt.Flags().Has(reservetransfer.FlagPreconvert) {
		return errors.New("launch: pre-launch currency only accepts PRECONVERT transfers")
	}
	if rt.FeeCurrencyID() != def.LaunchSystemID {
		return errors.New("launch: pre-launch preconvert fee currency must be the launch system")
	}
	return nil
}

// ClearLaunchOutcome is the result of evaluating a currency's accumulated
// preconversions against its declared minimums at the clear-launch export.
type ClearLaunchOutcome struct {
	Refunding    bool
	ShortfallIdx int // index into def.Currencies of the first shortfall, when Refunding
}

// EvaluateClearLaunch checks accumulated preconversion totals against
// def.MinPreconvert (spec.md §4.F): "If any reserve's accumulated
// preconversion is below minPreconvert[i], mark REFUNDING ... Else set
// LAUNCHCONFIRMED."
func EvaluateClearLaunch(def *currency.Definition, accumulatedPreconvert []int64) (ClearLaunchOutcome, error) {
	if len(def.MinPreconvert) == 0 {
		return ClearLaunchOutcome{}, nil // no declared minimums: always confirms.
	}
	if len(accumulatedPreconvert) != len(def.MinPreconvert) {
		return ClearLaunchOutcome{}, errors.New("launch: accumulated preconvert arity does not match minPreconvert")
	}
	for i, min := range def.MinPreconvert {
		if accumulatedPreconvert[i] < min {
			return ClearLaunchOutcome{Refunding: true, ShortfallIdx: i}, nil
		}
	}
	return ClearLaunchOutcome{}, nil
}

// SeedConfirmedState builds the CoinbaseCurrencyState a confirmed launch
// starts post-launch life with: reserves equal to the net accumulated
// preconversions, supply equal to def.InitialFractionalSupply plus whatever
// the preconvert pricing already minted, and LAUNCHCONFIRMED set (spec.md
// §4.F: "seed reserves[] and supply, compute initial prices from the
// first-pass totals and declared weights[]").
func SeedConfirmedState(def *currency.Definition, netPreconvertReserves []int64, mintedSupply int64) (*currency.State, error) {
	n := len(def.Currencies)
	if len(netPreconvertReserves) != n {
		return nil, errors.New("launch: netPreconvertReserves arity does not match currency basket")
	}
	s := &currency.State{
		Currencies:         append([]chainhash.ID(nil), def.Currencies...),
		Reserves:           append([]int64(nil), netPreconvertReserves...),
		ReserveIn:          append([]int64(nil), netPreconvertReserves...),
		ReserveOut:         make([]int64, n),
		Weights:            append([]float64(nil), def.Weights...),
		PriorWeights:       append([]float64(nil), def.Weights...),
		ConversionPrice:    make([]float64, n),
		ViaConversionPrice: make([]float64, n),
		Fees:               make([]int64, n),
		ConversionFees:     make([]int64, n),
		Supply:             def.InitialFractionalSupply + mintedSupply,
		PrimaryCurrencyIn:  mintedSupply,
		Flags:              currency.StateFlagLaunchClear | currency.StateFlagLaunchConfirmed,
	}
	for i := 0; i < n; i++ {
		price := currency.PriceFromReserves(s.Supply, s.Weights[i], s.Reserves[i])
		s.ConversionPrice[i] = float64(price) / float64(currency.SatoshiDen)
	}
	return s, nil
}

// SeedRefundingState marks s as REFUNDING: the clear-launch export found an
// under-subscribed currency, so exports/imports henceforth only distribute
// refunds back toward def.LaunchSystemID (spec.md §4.F).
func SeedRefundingState(def *currency.Definition) *currency.State {
	n := len(def.Currencies)
	return &currency.State{
		Currencies: append([]chainhash.ID(nil), def.Currencies...),
		Reserves:   make([]int64, n),
		ReserveIn:  make([]int64, n),
		ReserveOut: make([]int64, n),
		Weights:    append([]float64(nil), def.Weights...),
		Flags:      currency.StateFlagLaunchClear | currency.StateFlagRefunding,
	}
}

// CompletePostLaunch marks s LAUNCHCOMPLETE, the transition made once the
// first post-clear-launch import is processed (spec.md §4.F).
func CompletePostLaunch(s *currency.State) *currency.State {
	out := s.Clone()
	out.Flags |= currency.StateFlagLaunchComplete
	out.Flags &^= currency.StateFlagPreLaunch
	return out
}

// EffectiveDestination redirects exports/imports of a refunding currency
// back toward its launch system, per spec.md §4.F / §4.E refund path.
func EffectiveDestination(def *currency.Definition, phase Phase, nominalDestSystemID chainhash.ID) chainhash.ID {
	if phase == PhaseRefunding {
		return def.LaunchSystemID
	}
	return nominalDestSystemID
}
