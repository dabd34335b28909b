// Package export implements component D: the Exporter that batches pending
// ReserveTransfers into CrossChainExport records (spec.md §4.D).
package export

import (
	"sort"

	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/feelottery"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/launch"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pbaaschain/pbaasd/transferhash"
	"github.com/pbaaschain/pbaasd/upgrade"
	"github.com/pkg/errors"
)

// Flag is a bit in the CrossChainExport flag set (spec.md §3).
type Flag uint32

const (
	FlagPreLaunch Flag = 1 << iota
	FlagClearLaunch
	FlagPostLaunch
	FlagChainDefinition
	FlagSystemThread
	FlagSupplemental
	FlagEvidenceOnly
)

// Has reports whether f is set.
func (flags Flag) Has(f Flag) bool { return flags&f != 0 }

// CrossChainExport is one immutable, numbered export record (spec.md §3).
type CrossChainExport struct {
	SourceSystemID       chainhash.ID
	SourceHeightStart    uint64
	SourceHeightEnd      uint64 // half-open
	DestSystemID         chainhash.ID
	DestCurrencyID       chainhash.ID
	FirstInput           uint32
	NumInputs            uint32
	TotalAmounts         map[chainhash.ID]int64
	TotalFees            map[chainhash.ID]int64
	TotalBurned          map[chainhash.ID]int64
	HashReserveTransfers chainhash.Hash
	Exporter             destination.Destination
	Flags                Flag
}

// PendingTransfer is one transfer awaiting export, tagged with its source
// position for ordering (spec.md §4.L: "ordering is by (source-block-height,
// source-transaction-index, source-output-index)").
type PendingTransfer struct {
	Height   uint64
	TxIndex  uint32
	OutIndex uint32
	Transfer *reservetransfer.ReserveTransfer
}

// Thresholds are the aggregation thresholds of spec.md §4.D step 1.
type Thresholds struct {
	MinInputs                  int
	MinBlocks                  uint64
	MaxTransfersPerBlock       int
	MaxIdentityExportsPerBlock int
	MaxCurrencyExportsPerBlock int
	MaxPerSecondaryDestSubtotal int64
}

// ChainView is the read-only slice of block production / header chaining
// this package needs (spec.md §1 "Out of scope ... provides: block height,
// block entropy, chain tip").
type ChainView interface {
	CurrentHeight() uint64
	EntropyAt(height uint64) chainhash.Hash
	CoinbaseDestinations(height uint64) []destination.Destination
}

// Reason names a non-error, no-op outcome of Plan (spec.md §4.D: "nothing to
// export → no-op; destination chain paused by oracle → skip; destination's
// notarization is older than MAX_NOTARIZATION_DELAY... → skip with log").
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNothingPending
	ReasonOracleGated
	ReasonStaleNotarization
	ReasonBelowThreshold
)

// PlanParams bundles the inputs to Plan.
type PlanParams struct {
	SourceSystemID      chainhash.ID
	DestSystemID        chainhash.ID
	DestCurrencyID      chainhash.ID
	IsPBaaSDest         bool
	Def                 *currency.Definition
	Gate                *upgrade.Gate
	Chain               ChainView
	Thresholds          Thresholds
	Pending             []PendingTransfer // every transfer not yet covered by a prior export, sorted or not
	PriorSourceHeightEnd uint64            // 0 if no prior export exists
	LastNotarizationAge uint64             // blocks since the latest confirmed notarization from destSystemID
	MaxNotarizationAge  uint64             // MAX_NOTARIZATION_DELAY_BEFORE_CROSSCHAIN_PAUSE
	WallHeight          uint64
}

// Plan runs the Exporter's threshold/tie-break/clear-launch/fee-lottery
// decision sequence (spec.md §4.D) and returns the CrossChainExport to
// commit plus the ordered transfers it covers. ok is false when step 6
// (commit) should not run this round; reason explains why.
func Plan(p PlanParams) (export *CrossChainExport, covered []PendingTransfer, ok bool, reason Reason, err error) {
	if len(p.Pending) == 0 {
		return nil, nil, false, ReasonNothingPending, nil
	}
	if p.Gate.CrossChainDisabledFor(p.DestSystemID, p.IsPBaaSDest) {
		return nil, nil, false, ReasonOracleGated, nil
	}
	if !p.IsPBaaSDest && p.MaxNotarizationAge > 0 && p.LastNotarizationAge > p.MaxNotarizationAge {
		return nil, nil, false, ReasonStaleNotarization, nil
	}

	ordered := append([]PendingTransfer(nil), p.Pending...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.OutIndex < b.OutIndex
	})

	clearLaunchHeight, crossesLaunch := clearLaunchCut(p.Def, p.PriorSourceHeightEnd, p.WallHeight)

	cutIdx, flags, gotCut := determineCut(ordered, p.Thresholds, p.PriorSourceHeightEnd, p.WallHeight, p.Chain, clearLaunchHeight, crossesLaunch)
	if !gotCut {
		return nil, nil, false, ReasonBelowThreshold, nil
	}

	covered = ordered[:cutIdx]
	sourceHeightEnd := covered[len(covered)-1].Height + 1

	contributing := contributingHeights(covered)
	entropies := make([]feelottery.BlockEntropy, 0, len(contributing))
	for _, h := range contributing {
		entropies = append(entropies, feelottery.BlockEntropy{
			Height:               h,
			EntropyComponent:     p.Chain.EntropyAt(h),
			CoinbaseDestinations: p.Chain.CoinbaseDestinations(h),
		})
	}
	_, exporterDest, err := feelottery.Select(p.DestCurrencyID, sourceHeightEnd, entropies)
	if err != nil {
		return nil, nil, false, ReasonNone, errors.Wrap(err, "export: fee lottery")
	}

	transfers := make([]*reservetransfer.ReserveTransfer, len(covered))
	for i, c := range covered {
		transfers[i] = c.Transfer
	}
	hash := transferhash.HashReserveTransfers(transfers)

	totalAmounts, totalFees, totalBurned := aggregateTotals(transfers)

	exp := &CrossChainExport{
		SourceSystemID:       p.SourceSystemID,
		SourceHeightStart:    p.PriorSourceHeightEnd,
		SourceHeightEnd:      sourceHeightEnd,
		DestSystemID:         p.DestSystemID,
		DestCurrencyID:       p.DestCurrencyID,
		NumInputs:            uint32(len(covered)),
		TotalAmounts:         totalAmounts,
		TotalFees:            totalFees,
		TotalBurned:          totalBurned,
		HashReserveTransfers: hash,
		Exporter:             exporterDest,
		Flags:                flags,
	}
	return exp, covered, true, ReasonNone, nil
}

// clearLaunchCut reports the height at which def's startBlock falls within
// the still-uncovered range, if any (spec.md §4.D step 4).
func clearLaunchCut(def *currency.Definition, priorHeightEnd, wallHeight uint64) (height uint64, crosses bool) {
	if def == nil {
		return 0, false
	}
	if launch.CrossesStartBlock(def, priorHeightEnd, wallHeight) {
		return def.StartBlock, true
	}
	return 0, false
}

// determineCut decides where to cut the covered batch: at the clear-launch
// boundary if one is pending (regardless of size), else at the first point
// MinInputs/MinBlocks/soft-limit thresholds trip, with a deterministic
// coin-flip tie-break at the current block boundary (spec.md §4.D steps
// 1-3).
func determineCut(ordered []PendingTransfer, th Thresholds, priorHeightEnd, wallHeight uint64, chain ChainView, clearLaunchHeight uint64, crossesLaunch bool) (cutIdx int, flags Flag, ok bool) {
	if crossesLaunch {
		idx := 0
		for idx < len(ordered) && ordered[idx].Height < clearLaunchHeight {
			idx++
		}
		if idx == 0 {
			idx = len(ordered) // nothing before the boundary yet; take everything pending up to it
		}
		return idx, FlagClearLaunch, true
	}

	if len(ordered) >= th.MinInputs && th.MinInputs > 0 {
		return hardCapCut(ordered, th, chain, wallHeight)
	}

	if th.MinBlocks > 0 && wallHeight >= priorHeightEnd+th.MinBlocks {
		return hardCapCut(ordered, th, chain, wallHeight)
	}

	if th.MaxTransfersPerBlock > 0 && len(ordered) >= th.MaxTransfersPerBlock/2 {
		return hardCapCut(ordered, th, chain, wallHeight)
	}

	return 0, 0, false
}

// hardCapCut enforces the hard per-block transfer cap, applying the
// anti-front-running tie-break (spec.md §4.D step 2) when the current block
// would push the batch over the cap: the first bit of entropyAt(height+1)
// decides whether the current block's transfers join this export or roll
// into the next one.
func hardCapCut(ordered []PendingTransfer, th Thresholds, chain ChainView, wallHeight uint64) (int, Flag, bool) {
	if th.MaxTransfersPerBlock <= 0 || len(ordered) <= th.MaxTransfersPerBlock {
		return len(ordered), 0, true
	}

	cut := th.MaxTransfersPerBlock
	boundaryHeight := ordered[cut-1].Height
	// Does the boundary land mid-block? If the transfer just past the cap
	// is from the same height as the last one included, the cut must be
	// pushed to the nearest block boundary; which way is decided by the
	// coin flip rather than always rounding down.
	if cut < len(ordered) && ordered[cut].Height == boundaryHeight {
		entropy := chain.EntropyAt(boundaryHeight + 1)
		groupWithNext := entropy[0]&1 == 1
		if groupWithNext {
			// Roll this whole block out of the export; cut before it starts.
			for cut > 0 && ordered[cut-1].Height == boundaryHeight {
				cut--
			}
		} else {
			// Extend the cut through the rest of this block's transfers.
			for cut < len(ordered) && ordered[cut].Height == boundaryHeight {
				cut++
			}
		}
	}
	return cut, 0, true
}

func contributingHeights(covered []PendingTransfer) []uint64 {
	seen := map[uint64]struct{}{}
	var out []uint64
	for _, c := range covered {
		if _, ok := seen[c.Height]; ok {
			continue
		}
		seen[c.Height] = struct{}{}
		out = append(out, c.Height)
	}
	return out
}

func aggregateTotals(transfers []*reservetransfer.ReserveTransfer) (amounts, fees, burned map[chainhash.ID]int64) {
	amounts = map[chainhash.ID]int64{}
	fees = map[chainhash.ID]int64{}
	burned = map[chainhash.ID]int64{}
	for _, rt := range transfers {
		for cur, amt := range rt.ReserveValues() {
			amounts[cur] += amt
		}
		fees[rt.FeeCurrencyID()] += rt.NFees()
		if rt.Flags().Has(reservetransfer.FlagBurnChangePrice) {
			for cur, amt := range rt.ReserveValues() {
				burned[cur] += amt
			}
		}
	}
	return amounts, fees, burned
}
