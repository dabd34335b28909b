// Package reservedeposit implements component C: per-(controlling-currency,
// asset) escrow accounting, and the balance equation every import must
// satisfy exactly (spec.md §4.C, §8 property 2).
package reservedeposit

import (
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// ClearConvertTransitionSlack is the one-time allowed discrepancy in the
// balance equation during the "clear-convert transition window" (spec.md
// §4.C, §9 Open Questions). Its precise arithmetic is legacy and must be
// copied from reference test vectors rather than derived from first
// principles; this value is a named placeholder until those vectors are
// available, kept as a single constant so the real figure drops in without
// call-site churn.
const ClearConvertTransitionSlack int64 = 0

// ImportBalanceInputs is everything CheckImportBalance needs to verify the
// ledger equation of spec.md §4.C for one import, per currency:
//
//	spent + imported + max(minted, 0)  ==  newDeposits + payouts + max(-burned, 0)
type ImportBalanceInputs struct {
	// Spent is reserve deposits of controller K consumed by this import.
	Spent map[chainhash.ID]int64
	// Imported is currency amounts received from the source system.
	Imported map[chainhash.ID]int64
	// PrimaryMinted is primaryCurrencyOut when positive (minted); zero or
	// negative entries are ignored here (burns are handled via PrimaryBurned).
	PrimaryMinted map[chainhash.ID]int64
	// NewDeposits is new reserve deposits of controller K created by this import.
	NewDeposits map[chainhash.ID]int64
	// Payouts is payout outputs to recipients.
	Payouts map[chainhash.ID]int64
	// PrimaryBurned is primaryCurrencyOut when negative (burned), stored as
	// a positive magnitude.
	PrimaryBurned map[chainhash.ID]int64
	// AllowTransitionSlack permits ClearConvertTransitionSlack of
	// discrepancy for this one import (spec.md §4.C).
	AllowTransitionSlack bool
}

// CheckImportBalance verifies the reserve-deposit balance equation across
// every currency referenced on either side. A non-nil error is a spec.md §7
// ValidationFailure: the import must be rejected, never retried.
func CheckImportBalance(in ImportBalanceInputs) error {
	ids := unionKeys(in.Spent, in.Imported, in.PrimaryMinted, in.NewDeposits, in.Payouts, in.PrimaryBurned)

	slack := int64(0)
	if in.AllowTransitionSlack {
		slack = ClearConvertTransitionSlack
	}

	for id := range ids {
		lhs := in.Spent[id] + in.Imported[id] + positiveOnly(in.PrimaryMinted[id])
		rhs := in.NewDeposits[id] + in.Payouts[id] + positiveOnly(in.PrimaryBurned[id])
		diff := lhs - rhs
		if diff < 0 {
			diff = -diff
		}
		if diff > slack {
			return errors.Errorf(
				"reservedeposit: balance equation violated for currency %s: lhs=%d rhs=%d diff=%d slack=%d",
				id, lhs, rhs, diff, slack,
			)
		}
	}
	return nil
}

func positiveOnly(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func unionKeys(maps ...map[chainhash.ID]int64) map[chainhash.ID]struct{} {
	out := map[chainhash.ID]struct{}{}
	for _, m := range maps {
		for k := range m {
			out[k] = struct{}{}
		}
	}
	return out
}
