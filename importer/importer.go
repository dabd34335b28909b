// Package importer implements component E: consumes a committed export in
// strict order, runs conversion math, and produces the matching
// CrossChainImport plus post-conversion state (spec.md §4.E).
package importer

import (
	"github.com/pbaaschain/pbaasd/arbitrage"
	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/export"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/launch"
	"github.com/pbaaschain/pbaasd/payout"
	"github.com/pbaaschain/pbaasd/proof"
	"github.com/pbaaschain/pbaasd/reservedeposit"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pbaaschain/pbaasd/transferhash"
	"github.com/pbaaschain/pbaasd/upgrade"
	"github.com/pkg/errors"
)

// Flag is a bit in the CrossChainImport flag set (spec.md §3).
type Flag uint32

const (
	FlagDefinitionImport Flag = 1 << iota
	FlagInitialLaunch
	FlagPostLaunch
	FlagSameChain
	FlagSourceSystem
)

// Has reports whether f is set.
func (flags Flag) Has(f Flag) bool { return flags&f != 0 }

// CrossChainImport is the committed record an import transaction carries
// (spec.md §3).
type CrossChainImport struct {
	SourceSystemID       chainhash.ID
	SourceSystemHeight   uint64
	ImportCurrencyID     chainhash.ID
	ImportValue          map[chainhash.ID]int64
	TotalReserveOutMap   map[chainhash.ID]int64
	NumOutputs           uint32
	HashReserveTransfers chainhash.Hash
	ExportTxID           chainhash.Hash
	ExportTxOutNum       uint32
	Flags                Flag
}

// FeeSchedule names the minimum native-equivalent fee spec.md §4.E step 5
// requires per transfer kind.
type FeeSchedule struct {
	IDImportFee            int64
	CurrencyImportFee      int64
	CurrencyImportFeeNFT   int64
	TransactionImportFee   int64 // cross-chain transfers
	TransactionTransferFee int64 // same-chain transfers
}

// MinFeeFor returns the minimum native-equivalent fee rt must clear.
// isNFT reports whether rt's currency-export payload describes an NFT
// currency (only meaningful when rt carries FlagCurrencyExport).
func (f FeeSchedule) MinFeeFor(rt *reservetransfer.ReserveTransfer, crossSystem bool, isNFT bool) int64 {
	switch {
	case rt.Flags().Has(reservetransfer.FlagIdentityExport):
		return f.IDImportFee
	case rt.Flags().Has(reservetransfer.FlagCurrencyExport):
		if isNFT {
			return f.CurrencyImportFeeNFT
		}
		return f.CurrencyImportFee
	case crossSystem:
		return f.TransactionImportFee
	default:
		return f.TransactionTransferFee
	}
}

// PriceOracle supplies the most favorable native-equivalent price for a fee
// currency over a notarization window, per spec.md §4.E step 5. Same-chain
// windows are expressed in source heights; cross-chain windows are
// expressed in destination-chain heights derived from block time (max 40
// minutes or 50 blocks).
type PriceOracle interface {
	MostFavorablePrice(feeCurrencyID chainhash.ID, windowStart, windowEnd uint64) (currency.Price, bool)
}

// CrossChainWindowBlocks converts the "max 40 minutes or 50 blocks" window
// rule (spec.md §4.E step 5) into a block count for a chain with the given
// average block time.
func CrossChainWindowBlocks(blockTimeSeconds int64) uint64 {
	const maxMinutes = 40
	const maxBlocks = 50
	if blockTimeSeconds <= 0 {
		return maxBlocks
	}
	byTime := (maxMinutes * 60) / blockTimeSeconds
	if byTime > maxBlocks {
		byTime = maxBlocks
	}
	if byTime < 1 {
		byTime = 1
	}
	return uint64(byTime)
}

// CheckAdequateFees rejects any transfer whose fee, converted to its
// native equivalent at the most favorable price available in
// [windowStart, windowEnd], falls below its FeeSchedule minimum (spec.md
// §4.E step 5). isNFT classifies each transfer's currency-export payload,
// if any.
func CheckAdequateFees(
	transfers []*reservetransfer.ReserveTransfer,
	nativeCurrencyID chainhash.ID,
	schedule FeeSchedule,
	isNFT func(*reservetransfer.ReserveTransfer) bool,
	crossSystem bool,
	oracle PriceOracle,
	windowStart, windowEnd uint64,
) error {
	for _, rt := range transfers {
		nft := false
		if isNFT != nil {
			nft = isNFT(rt)
		}
		minFee := schedule.MinFeeFor(rt, crossSystem, nft)

		nativeEquivalent := rt.NFees()
		if rt.FeeCurrencyID() != nativeCurrencyID {
			price, ok := oracle.MostFavorablePrice(rt.FeeCurrencyID(), windowStart, windowEnd)
			if !ok {
				return errors.Errorf("importer: no price available for fee currency %s in window [%d,%d]", rt.FeeCurrencyID(), windowStart, windowEnd)
			}
			nativeEquivalent = currency.ReserveToNative(rt.NFees(), price)
		}
		if nativeEquivalent < minFee {
			return errors.Errorf("importer: transfer fee %d (native-equivalent %d) below minimum %d", rt.NFees(), nativeEquivalent, minFee)
		}
	}
	return nil
}

// Params bundles everything Run needs to process one export into an import.
type Params struct {
	SourceSystemID   chainhash.ID
	DestSystemID     chainhash.ID
	ImportCurrencyID chainhash.ID
	IsPBaaSSource    bool
	CrossSystem      bool

	Def     *currency.Definition
	StateIn *currency.State

	PriorImport *CrossChainImport // nil if this is the first import for the pair

	Export    *export.CrossChainExport
	Transfers []*reservetransfer.ReserveTransfer // decoded in committed (export) order
	ExportTxID chainhash.Hash
	ExportTxOutNum uint32

	// Proof and RemoteProofRoot are required (non-nil) only when CrossSystem
	// is true (spec.md §4.E step 2).
	Proof           *proof.PartialTransactionProof
	RemoteProofRoot currency.ProofRoot

	Gate        *upgrade.Gate
	LaunchPhase launch.Phase

	FeeSchedule      FeeSchedule
	NativeCurrencyID chainhash.ID
	IsNFT            func(*reservetransfer.ReserveTransfer) bool
	PriceOracle      PriceOracle
	WindowStart      uint64
	WindowEnd        uint64

	Deposits *reservedeposit.Store

	ArbitrageBook       arbitrage.Book
	ArbitrageConditions arbitrage.Conditions
	ArbitrageFeeCurrency chainhash.ID
	ArbitrageFee         int64

	Height      uint64
	// ClaimedFeeRecipient is the fee-recipient destination the import
	// transaction's proposer designates; it must equal (directly or via an
	// auxiliary destination) p.Export.Exporter, the fee recipient the
	// export already committed to (spec.md §4.E step 4).
	ClaimedFeeRecipient destination.Destination
	Proposer            destination.Destination
	EntropyHash         chainhash.Hash
}

// Result is everything Run produces.
type Result struct {
	Import           *CrossChainImport
	ConversionResult *currency.ImportOutputsResult
	RefundIssued     bool
}

// Run executes the full importer procedure of spec.md §4.E. A returned
// error rejects the import. Proof failures are returned as the *proof.Error
// from proof.Verify; out-of-order and other validation rejections are plain
// errors and are not told apart by type.
func Run(p Params) (*Result, error) {
	if err := checkOrdering(p); err != nil {
		return nil, err
	}
	if err := checkTransferHash(p); err != nil {
		return nil, err
	}

	if p.CrossSystem {
		if p.Proof == nil {
			return nil, errors.New("importer: cross-system import requires a proof")
		}
		if _, err := proof.Verify(p.Proof, p.ExportTxID, p.RemoteProofRoot); err != nil {
			return nil, err
		}
	}

	if !p.Export.Exporter.EqualOrAux(p.ClaimedFeeRecipient) {
		return nil, errors.New("importer: exporter does not match fee-recipient destination")
	}

	transfers := p.Transfers
	if offer, ok := arbitrage.SelectBest(p.ArbitrageBook, p.ArbitrageConditions, p.Def.ID, p.Def.Currencies); ok {
		arbTransfer, err := arbitrage.BuildTransfer(offer, p.ArbitrageFeeCurrency, p.ArbitrageFee)
		if err != nil {
			return nil, errors.Wrap(err, "importer: building arbitrage transfer")
		}
		transfers = append(append([]*reservetransfer.ReserveTransfer(nil), transfers...), arbTransfer)
	}

	if err := CheckAdequateFees(transfers, p.NativeCurrencyID, p.FeeSchedule, p.IsNFT, p.CrossSystem, p.PriceOracle, p.WindowStart, p.WindowEnd); err != nil {
		return nil, err
	}

	if p.LaunchPhase == launch.PhaseRefunding {
		return runRefund(p, transfers)
	}

	convParams := currency.ImportOutputsParams{
		SourceSystemID: p.SourceSystemID,
		DestSystemID:   p.DestSystemID,
		CurrencyDef:    p.Def,
		StateIn:        p.StateIn,
		Transfers:      transfers,
		Height:         p.Height,
		Exporter:       p.Export.Exporter,
		Proposer:       p.Proposer,
		EntropyHash:    p.EntropyHash,
		IsPreLaunch:    p.LaunchPhase == launch.PhasePreLaunch,
	}
	result, ok, err := currency.AddReserveTransferImportOutputs(convParams)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("importer: conversion produced no result")
	}

	if err := checkBalance(p, transfers, result); err != nil {
		return nil, err
	}
	if err := applyDeposits(p, result); err != nil {
		return nil, err
	}

	flags := importFlags(p)
	imp := &CrossChainImport{
		SourceSystemID:       p.SourceSystemID,
		SourceSystemHeight:   p.Export.SourceHeightEnd - 1,
		ImportCurrencyID:     p.ImportCurrencyID,
		ImportValue:          result.ImportedIn,
		TotalReserveOutMap:   result.SpentCurrencyOut,
		NumOutputs:           uint32(len(result.Outputs)),
		HashReserveTransfers: p.Export.HashReserveTransfers,
		ExportTxID:           p.ExportTxID,
		ExportTxOutNum:       p.ExportTxOutNum,
		Flags:                flags,
	}
	return &Result{Import: imp, ConversionResult: result}, nil
}

func checkOrdering(p Params) error {
	if p.Export == nil {
		return errors.New("importer: no export to import")
	}
	var expectedStart uint64
	if p.PriorImport != nil {
		expectedStart = p.PriorImport.SourceSystemHeight + 1
	}
	if p.Export.SourceHeightStart != expectedStart {
		return errors.Errorf("importer: out of order export for import: expected sourceHeightStart %d, got %d", expectedStart, p.Export.SourceHeightStart)
	}
	return nil
}

// checkTransferHash recomputes transferhash.HashReserveTransfers over the
// transfers as committed (before any arbitrage injection) and rejects the
// import if it doesn't match the export's already-committed value (spec.md
// §4.L: "any mismatch fails validation").
func checkTransferHash(p Params) error {
	got := transferhash.HashReserveTransfers(p.Transfers)
	if got != p.Export.HashReserveTransfers {
		return errors.Errorf("importer: hashReserveTransfers mismatch: export committed %s, recomputed %s", p.Export.HashReserveTransfers, got)
	}
	return nil
}

func checkBalance(p Params, transfers []*reservetransfer.ReserveTransfer, result *currency.ImportOutputsResult) error {
	spent := map[chainhash.ID]int64{}
	if p.Deposits != nil {
		balances, err := p.Deposits.BalanceAll(p.Def.ID)
		if err != nil {
			return errors.Wrap(err, "importer: reading deposit balances")
		}
		for cur, amt := range result.SpentCurrencyOut {
			if balances[cur] < amt {
				return errors.Errorf("importer: spending %d of %s exceeds escrowed balance %d", amt, cur, balances[cur])
			}
			spent[cur] = amt
		}
	}

	primaryMinted := map[chainhash.ID]int64{}
	primaryBurned := map[chainhash.ID]int64{}
	if result.StateOut.PrimaryCurrencyOut > 0 {
		primaryMinted[p.Def.ID] = result.StateOut.PrimaryCurrencyOut
	}
	if result.StateOut.PrimaryCurrencyIn > 0 {
		primaryBurned[p.Def.ID] = result.StateOut.PrimaryCurrencyIn
	}

	payouts := map[chainhash.ID]int64{}
	for _, out := range result.Outputs {
		payouts[out.CurrencyID] += out.Amount
	}

	return reservedeposit.CheckImportBalance(reservedeposit.ImportBalanceInputs{
		Spent:                spent,
		Imported:             result.ImportedIn,
		PrimaryMinted:        primaryMinted,
		NewDeposits:          result.GatewayDepositsIn,
		Payouts:              payouts,
		PrimaryBurned:        primaryBurned,
		AllowTransitionSlack: p.LaunchPhase == launch.PhaseClearLaunch,
	})
}

func applyDeposits(p Params, result *currency.ImportOutputsResult) error {
	if p.Deposits == nil {
		return nil
	}
	for cur, amt := range result.SpentCurrencyOut {
		if err := p.Deposits.Debit(p.Def.ID, cur, amt); err != nil {
			return err
		}
	}
	for cur, amt := range result.GatewayDepositsIn {
		if err := p.Deposits.Credit(p.DestSystemID, cur, amt); err != nil {
			return err
		}
	}
	return nil
}

func importFlags(p Params) Flag {
	var flags Flag
	if !p.CrossSystem {
		flags |= FlagSameChain
	} else {
		flags |= FlagSourceSystem
	}
	switch p.LaunchPhase {
	case launch.PhaseClearLaunch:
		flags |= FlagInitialLaunch
	case launch.PhasePostLaunch:
		flags |= FlagPostLaunch
	}
	if p.Export.Flags.Has(export.FlagChainDefinition) {
		flags |= FlagDefinitionImport
	}
	return flags
}

// runRefund handles the refunding-currency path (spec.md §4.E "Refund
// path"): every transfer's reserveValues are paid straight back to its own
// destination rather than minted, and no state conversion happens.
func runRefund(p Params, transfers []*reservetransfer.ReserveTransfer) (*Result, error) {
	outputs := make([]payout.Output, 0, len(transfers))
	totalReserveOut := map[chainhash.ID]int64{}
	for _, rt := range transfers {
		for cur, amt := range rt.ReserveValues() {
			outputs = append(outputs, payout.Output{CurrencyID: cur, Amount: amt, Dest: rt.Destination()})
			totalReserveOut[cur] += amt
		}
	}
	stateOut := p.StateIn.Clone()
	stateOut.Flags |= currency.StateFlagRefunding

	result := &currency.ImportOutputsResult{
		Outputs:           outputs,
		ImportedIn:        map[chainhash.ID]int64{},
		GatewayDepositsIn: map[chainhash.ID]int64{},
		SpentCurrencyOut:  totalReserveOut,
		StateOut:          stateOut,
	}
	if err := applyDeposits(p, result); err != nil {
		return nil, err
	}

	imp := &CrossChainImport{
		SourceSystemID:       p.SourceSystemID,
		SourceSystemHeight:   p.Export.SourceHeightEnd - 1,
		ImportCurrencyID:     p.ImportCurrencyID,
		ImportValue:          result.ImportedIn,
		TotalReserveOutMap:   totalReserveOut,
		NumOutputs:           uint32(len(outputs)),
		HashReserveTransfers: p.Export.HashReserveTransfers,
		ExportTxID:           p.ExportTxID,
		ExportTxOutNum:       p.ExportTxOutNum,
		Flags:                importFlags(p),
	}
	return &Result{Import: imp, ConversionResult: result, RefundIssued: true}, nil
}
