// Package engine implements component M: the per-node engine instance that
// ties CurrencyState, ReserveTransfer, the Reserve Deposit Ledger, Exporter,
// Importer, the launch state machine, and the oracle gate into one
// cooperatively scheduled submission worker (spec.md §2, §5).
package engine

import (
	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/importer"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/payout"
)

// Config is the engine-level configuration spec.md §6 enumerates:
// `autonotaryrevoke`, `miningdistribution`, `arbitragecurrencies`, plus the
// currency registry and the import fee schedule. Export aggregation
// thresholds are not part of it; they are passed to each export plan.
type Config struct {
	DataDir     string
	NetworkName string

	// DaemonVersion feeds the Upgrade/Oracle Gate's graceful-stop check
	// (spec.md §4.K).
	DaemonVersion uint32

	// Currencies is every currency definition this node tracks.
	Currencies map[chainhash.ID]*currency.Definition

	// NativeCurrencyID is the local chain's own native currency.
	NativeCurrencyID chainhash.ID

	FeeSchedule importer.FeeSchedule

	// AutoNotaryRevoke names the identity ID authorized to panic-revoke
	// this node's notarizations (spec.md §6).
	AutoNotaryRevoke chainhash.ID

	// MiningDistribution is the pass-through set of mining payout targets
	// (spec.md §6).
	MiningDistribution []payout.Output

	// ArbitrageCurrencies are the currencies eligible for component J
	// injection (spec.md §6 `arbitragecurrencies`).
	ArbitrageCurrencies map[chainhash.ID]struct{}

	DebugLevel string
}
