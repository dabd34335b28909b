package currency

import (
	"math/big"

	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/payout"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pkg/errors"
)

// SatoshiDen is the fixed-point scale every amount and price in this package
// is expressed at: one unit of currency is 1e8 satoshis (spec.md §3).
const SatoshiDen int64 = 100000000

// Price is a fixed-point price, scaled by SatoshiDen: Price(150000000) means
// "1.5 native units per reserve unit".
type Price int64

// PriceFromReserves computes price_i = supply * w_i / reserves_i, the
// constant the spec requires for every reserve i (spec.md §4.A).
func PriceFromReserves(supply int64, weight float64, reserves int64) Price {
	if reserves <= 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(supply), big.NewInt(int64(weight*float64(SatoshiDen))))
	num.Mul(num, big.NewInt(SatoshiDen))
	den := new(big.Int).Mul(big.NewInt(reserves), big.NewInt(SatoshiDen))
	if den.Sign() == 0 {
		return 0
	}
	num.Div(num, den)
	return Price(num.Int64())
}

func mulDiv(a, b, den int64) int64 {
	if den == 0 {
		return 0
	}
	prod := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	prod.Div(prod, big.NewInt(den))
	return prod.Int64()
}

// ReserveToNative converts reserveAmount of a reserve currency into the
// equivalent amount of native (supply) currency at price.
func ReserveToNative(reserveAmount int64, price Price) int64 {
	return mulDiv(reserveAmount, int64(price), SatoshiDen)
}

// NativeToReserve converts nativeAmount of native (supply) currency into
// the equivalent amount of reserve currency at price.
func NativeToReserve(nativeAmount int64, price Price) int64 {
	if price == 0 {
		return 0
	}
	return mulDiv(nativeAmount, SatoshiDen, int64(price))
}

// Conversion fee parameters (spec.md §4.A: "roughly 0.025-0.1% with a
// floor"). ConversionFeeNumerator/Denominator express 0.05%, the geometric
// midpoint of that range, as a clean fraction; MinConversionFee is the floor in
// satoshis.
const (
	ConversionFeeNumerator   int64 = 5
	ConversionFeeDenominator int64 = 10000
	MinConversionFee         int64 = 10000
)

// CalculateConversionFee returns the conversion fee charged on amount,
// applying the floor. Reserve-to-reserve transfers double this (spec.md
// §4.A).
func CalculateConversionFee(amount int64) int64 {
	fee := mulDiv(amount, ConversionFeeNumerator, ConversionFeeDenominator)
	if fee < MinConversionFee {
		fee = MinConversionFee
	}
	return fee
}

// ImportOutputsParams bundles the arguments to AddReserveTransferImportOutputs.
type ImportOutputsParams struct {
	SourceSystemID chainhash.ID
	DestSystemID   chainhash.ID
	CurrencyDef    *Definition
	StateIn        *State
	Transfers      []*reservetransfer.ReserveTransfer
	Height         uint64
	Exporter       destination.Destination
	Proposer       destination.Destination
	EntropyHash    chainhash.Hash
	IsPreLaunch    bool
	ValidateOnly   bool
}

// ImportOutputsResult is everything AddReserveTransferImportOutputs produces:
// the per-recipient payouts, the per-currency amounts imported in from the
// source system, the per-currency amounts drawn from gateway deposits, the
// per-currency amounts spent out of same-chain reserve deposits, and the
// resulting CoinbaseCurrencyState.
type ImportOutputsResult struct {
	Outputs           []payout.Output
	ImportedIn        map[chainhash.ID]int64
	GatewayDepositsIn map[chainhash.ID]int64
	SpentCurrencyOut  map[chainhash.ID]int64
	StateOut          *State
}

// AddReserveTransferImportOutputs is component A's one entry point (spec.md
// §4.A): given reserves/weights/supply and a batch of transfers, it produces
// new reserves/supply and per-currency conversion prices, plus the payout
// outputs recipients are owed. It is a pure function of its inputs — no
// notarization, UTXO, or proof lookups happen here; those are the importer's
// job (package importer) before and after calling this.
//
// It runs two passes when the batch contains conversions, per spec.md §4.A:
// the first pass accumulates reserve-ins per currency; the second prices
// each conversion at the average of the before/after prices, so the result
// does not depend on the batch's internal transfer order.
func AddReserveTransferImportOutputs(p ImportOutputsParams) (*ImportOutputsResult, bool, error) {
	def := p.CurrencyDef
	stateIn := p.StateIn

	if !def.Options.Has(OptionFractional) {
		return addNonFractionalOutputs(p)
	}

	n := len(def.Currencies)
	if len(stateIn.Reserves) != n || len(stateIn.Weights) != n {
		return nil, false, errors.New("currency: stateIn reserve/weight arity does not match currency definition")
	}

	priceBefore := make([]Price, n)
	for i := 0; i < n; i++ {
		priceBefore[i] = PriceFromReserves(stateIn.Supply, stateIn.Weights[i], stateIn.Reserves[i])
	}

	// Pass 1: accumulate reserve-ins per reserve currency, and native-ins
	// (pending burns) from the opposite direction.
	reserveInPass1 := make([]int64, n)
	var nativeInPass1 int64
	for _, rt := range p.Transfers {
		if rt.Flags().Has(reservetransfer.FlagArbitrageOnly) && p.IsPreLaunch {
			continue // arbitrage is post-launch only (spec.md §4.J); defensive skip.
		}
		for curID, amount := range rt.ReserveValues() {
			if idx := def.ReserveIndex(curID); idx >= 0 && rt.DestCurrencyID() == def.ID {
				reserveInPass1[idx] += amount
			} else if curID == def.ID && rt.DestCurrencyID() != def.ID {
				nativeInPass1 += amount
			}
		}
	}

	priceAfterEstimate := make([]Price, n)
	for i := 0; i < n; i++ {
		priceAfterEstimate[i] = PriceFromReserves(stateIn.Supply, stateIn.Weights[i], stateIn.Reserves[i]+reserveInPass1[i])
	}
	priceAvg := make([]Price, n)
	for i := 0; i < n; i++ {
		priceAvg[i] = Price((int64(priceBefore[i]) + int64(priceAfterEstimate[i])) / 2)
	}

	// The per-batch deltas start from zero: they describe this batch only.
	stateOut := stateIn.Clone()
	stateOut.ReserveIn = make([]int64, n)
	stateOut.ReserveOut = make([]int64, n)
	stateOut.Fees = make([]int64, n)
	stateOut.ConversionFees = make([]int64, n)
	stateOut.PrimaryCurrencyOut = 0
	stateOut.PrimaryCurrencyIn = 0
	outputs := make([]payout.Output, 0, len(p.Transfers))
	importedIn := map[chainhash.ID]int64{}
	gatewayDepositsIn := map[chainhash.ID]int64{}
	spentCurrencyOut := map[chainhash.ID]int64{}

	// Pass 2: price each transfer's conversion at priceAvg and emit outputs.
	for _, rt := range p.Transfers {
		if err := applyTransfer(def, stateOut, priceAvg, p, rt, &outputs, importedIn, gatewayDepositsIn, spentCurrencyOut); err != nil {
			return nil, false, err
		}
	}

	if len(stateOut.ConversionPrice) != n {
		stateOut.ConversionPrice = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		stateOut.ConversionPrice[i] = float64(priceAvg[i]) / float64(SatoshiDen)
	}

	if p.ValidateOnly {
		return &ImportOutputsResult{
			Outputs:           outputs,
			ImportedIn:        importedIn,
			GatewayDepositsIn: gatewayDepositsIn,
			SpentCurrencyOut:  spentCurrencyOut,
			StateOut:          stateOut,
		}, true, nil
	}

	return &ImportOutputsResult{
		Outputs:           outputs,
		ImportedIn:        importedIn,
		GatewayDepositsIn: gatewayDepositsIn,
		SpentCurrencyOut:  spentCurrencyOut,
		StateOut:          stateOut,
	}, true, nil
}

func applyTransfer(
	def *Definition,
	stateOut *State,
	priceAvg []Price,
	p ImportOutputsParams,
	rt *reservetransfer.ReserveTransfer,
	outputs *[]payout.Output,
	importedIn, gatewayDepositsIn, spentCurrencyOut map[chainhash.ID]int64,
) error {
	if rt.Flags().Has(reservetransfer.FlagMintCurrency) || rt.Flags().Has(reservetransfer.FlagBurnChangePrice) {
		if !def.MintBurnPermitted(p.IsPreLaunch) {
			return errors.New("currency: mint/burn-change-weight not permitted for this currency or launch phase")
		}
		for curID, amount := range rt.ReserveValues() {
			if curID != def.ID {
				continue
			}
			if rt.Flags().Has(reservetransfer.FlagMintCurrency) {
				stateOut.Supply += amount
				stateOut.PrimaryCurrencyOut += amount
			} else {
				stateOut.Supply -= amount
				stateOut.PrimaryCurrencyIn += amount
			}
		}
		*outputs = append(*outputs, payout.Output{CurrencyID: def.ID, Amount: rt.TotalCurrencyOut()[def.ID], Dest: rt.Destination()})
		return nil
	}

	fee := CalculateConversionFee(sumValues(rt.ReserveValues()))
	if rt.Flags().Has(reservetransfer.FlagReserveToReserve) {
		fee *= 2
	}

	if rt.Flags().Has(reservetransfer.FlagPreconvert) {
		// Pre-launch preconversions price at the declared launch
		// conversions[i], never live prices (spec.md §4.A, §4.F).
		for curID, amount := range rt.ReserveValues() {
			idx := def.ReserveIndex(curID)
			if idx < 0 {
				continue
			}
			net := amount - fee
			if net < 0 {
				return errors.New("currency: preconvert amount smaller than conversion fee")
			}
			minted := int64(float64(net) * def.Conversions[idx])
			stateOut.Reserves[idx] += net
			stateOut.ReserveIn[idx] += net
			stateOut.Supply += minted
			stateOut.Fees[idx] += fee
			*outputs = append(*outputs, payout.Output{CurrencyID: def.ID, Amount: minted, Dest: rt.Destination()})
		}
		return nil
	}

	for curID, amount := range rt.ReserveValues() {
		idx := def.ReserveIndex(curID)
		switch {
		case idx >= 0 && rt.DestCurrencyID() == def.ID:
			// reserve -> native
			net := amount - fee
			if net < 0 {
				return errors.New("currency: amount smaller than conversion fee")
			}
			minted := ReserveToNative(net, priceAvg[idx])
			stateOut.Reserves[idx] += net
			stateOut.ReserveIn[idx] += net
			stateOut.Supply += minted
			stateOut.PrimaryCurrencyOut += minted
			stateOut.Fees[idx] += fee
			stateOut.ConversionFees[idx] += fee
			*outputs = append(*outputs, payout.Output{CurrencyID: def.ID, Amount: minted, Dest: rt.Destination()})
			if rt.Flags().Has(reservetransfer.FlagCrossSystem) {
				importedIn[curID] += amount
			}
		case curID == def.ID && def.ReserveIndex(rt.DestCurrencyID()) >= 0:
			// native -> reserve
			destIdx := def.ReserveIndex(rt.DestCurrencyID())
			net := amount - fee
			if net < 0 {
				return errors.New("currency: amount smaller than conversion fee")
			}
			reserveOut := NativeToReserve(net, priceAvg[destIdx])
			if reserveOut > stateOut.Reserves[destIdx] {
				return errors.New("currency: conversion would overdraw reserve")
			}
			stateOut.Reserves[destIdx] -= reserveOut
			stateOut.ReserveOut[destIdx] += reserveOut
			stateOut.Supply -= net
			stateOut.PrimaryCurrencyIn += net
			stateOut.Fees[destIdx] += fee
			stateOut.ConversionFees[destIdx] += fee
			*outputs = append(*outputs, payout.Output{CurrencyID: rt.DestCurrencyID(), Amount: reserveOut, Dest: rt.Destination()})
			spentCurrencyOut[rt.DestCurrencyID()] += reserveOut
		default:
			// Passthrough: no conversion, just a same-currency payment
			// (e.g. a plain cross-system value transfer).
			*outputs = append(*outputs, payout.Output{CurrencyID: curID, Amount: amount, Dest: rt.Destination()})
			if rt.Flags().Has(reservetransfer.FlagCrossSystem) {
				if curID == def.GatewayID {
					gatewayDepositsIn[curID] += amount
				} else {
					importedIn[curID] += amount
				}
			}
		}
	}
	return nil
}

func sumValues(values map[chainhash.ID]int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

// addNonFractionalOutputs handles the (much simpler) non-fractional case:
// every transfer is a direct payment, no conversion math applies.
func addNonFractionalOutputs(p ImportOutputsParams) (*ImportOutputsResult, bool, error) {
	outputs := make([]payout.Output, 0, len(p.Transfers))
	importedIn := map[chainhash.ID]int64{}
	for _, rt := range p.Transfers {
		for curID, amount := range rt.ReserveValues() {
			outputs = append(outputs, payout.Output{CurrencyID: curID, Amount: amount, Dest: rt.Destination()})
			if rt.Flags().Has(reservetransfer.FlagCrossSystem) {
				importedIn[curID] += amount
			}
		}
	}
	stateOut := p.StateIn.Clone()
	return &ImportOutputsResult{
		Outputs:           outputs,
		ImportedIn:        importedIn,
		GatewayDepositsIn: map[chainhash.ID]int64{},
		SpentCurrencyOut:  map[chainhash.ID]int64{},
		StateOut:          stateOut,
	}, true, nil
}
