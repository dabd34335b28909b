package importer

import (
	"testing"

	"github.com/pbaaschain/pbaasd/arbitrage"
	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/export"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/launch"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pbaaschain/pbaasd/transferhash"
	"github.com/pbaaschain/pbaasd/upgrade"
)

func id(b byte) chainhash.ID {
	var i chainhash.ID
	i[0] = b
	return i
}

func dest() destination.Destination {
	return destination.New(destination.TypePubKeyHash, []byte{1, 2, 3})
}

type stubOracle struct {
	price currency.Price
	ok    bool
}

func (s stubOracle) MostFavorablePrice(chainhash.ID, uint64, uint64) (currency.Price, bool) {
	return s.price, s.ok
}

type noOffersBook struct{}

func (noOffersBook) OffersFor(chainhash.ID, map[chainhash.ID]struct{}) []arbitrage.Offer { return nil }

func mustTransfer(t *testing.T, reserveID, destCurrencyID chainhash.ID, amount int64, nFees int64) *reservetransfer.ReserveTransfer {
	t.Helper()
	rt, err := reservetransfer.NewReserveTransfer(reservetransfer.Params{
		FeeCurrencyID:  reserveID,
		NFees:          nFees,
		ReserveValues:  map[chainhash.ID]int64{reserveID: amount},
		DestCurrencyID: destCurrencyID,
		Destination:    dest(),
	})
	if err != nil {
		t.Fatalf("building transfer: %+v", err)
	}
	return rt
}

func TestCrossChainWindowBlocks(t *testing.T) {
	if got := CrossChainWindowBlocks(60); got != 40 { // 40min*60s/60s-per-block = 40 blocks, under the 50 cap
		t.Errorf("CrossChainWindowBlocks(60) = %d, want 40", got)
	}
	if got := CrossChainWindowBlocks(1); got != 50 { // fast chain hits the 50-block cap first
		t.Errorf("CrossChainWindowBlocks(1) = %d, want 50 (hard cap)", got)
	}
	if got := CrossChainWindowBlocks(0); got != 50 {
		t.Errorf("CrossChainWindowBlocks(0) = %d, want the 50-block fallback", got)
	}
}

func TestCheckAdequateFeesAcceptsNativeFee(t *testing.T) {
	native := id(1)
	rt := mustTransfer(t, native, id(2), 1000, 500)
	schedule := FeeSchedule{TransactionTransferFee: 100}
	err := CheckAdequateFees([]*reservetransfer.ReserveTransfer{rt}, native, schedule, nil, false, nil, 0, 0)
	if err != nil {
		t.Errorf("a native-currency fee above the minimum should pass: %+v", err)
	}
}

func TestCheckAdequateFeesRejectsBelowMinimum(t *testing.T) {
	native := id(1)
	rt := mustTransfer(t, native, id(2), 1000, 10)
	schedule := FeeSchedule{TransactionTransferFee: 100}
	err := CheckAdequateFees([]*reservetransfer.ReserveTransfer{rt}, native, schedule, nil, false, nil, 0, 0)
	if err == nil {
		t.Fatal("expected an error when the fee is below the schedule minimum")
	}
}

func TestCheckAdequateFeesConvertsNonNativeFeeViaOracle(t *testing.T) {
	native, reserve := id(1), id(2)
	rt := mustTransfer(t, reserve, id(3), 1000, 100)
	schedule := FeeSchedule{TransactionTransferFee: 150}
	oracle := stubOracle{price: currency.Price(2 * currency.SatoshiDen), ok: true} // 2 native per reserve unit
	err := CheckAdequateFees([]*reservetransfer.ReserveTransfer{rt}, native, schedule, nil, false, oracle, 0, 100)
	if err != nil {
		t.Errorf("100 reserve units at 2x should clear a 150-native minimum: %+v", err)
	}
}

func TestCheckAdequateFeesFailsWithNoOracleQuote(t *testing.T) {
	native, reserve := id(1), id(2)
	rt := mustTransfer(t, reserve, id(3), 1000, 100)
	schedule := FeeSchedule{TransactionTransferFee: 150}
	oracle := stubOracle{ok: false}
	err := CheckAdequateFees([]*reservetransfer.ReserveTransfer{rt}, native, schedule, nil, false, oracle, 0, 100)
	if err == nil {
		t.Fatal("expected an error when no price is available for the fee currency")
	}
}

func TestRunRejectsOutOfOrderExport(t *testing.T) {
	exp := &export.CrossChainExport{SourceHeightStart: 5}
	p := Params{
		Export:      exp,
		PriorImport: &CrossChainImport{SourceSystemHeight: 10},
	}
	_, err := Run(p)
	if err == nil {
		t.Fatal("expected an out-of-order rejection")
	}
}

func basicFractionalDef(reserveA chainhash.ID) *currency.Definition {
	return &currency.Definition{
		ID:          id(100),
		Options:     currency.OptionFractional,
		Currencies:  []chainhash.ID{reserveA},
		Weights:     []float64{1.0},
		Conversions: []float64{1},
	}
}

func basicParams(t *testing.T, transfers []*reservetransfer.ReserveTransfer) Params {
	reserveA := id(1)
	def := basicFractionalDef(reserveA)
	exporterDest := dest()
	exp := &export.CrossChainExport{
		SourceSystemID:       id(9),
		SourceHeightStart:    0,
		SourceHeightEnd:      10,
		Exporter:             exporterDest,
		HashReserveTransfers: transferhash.HashReserveTransfers(transfers),
	}
	return Params{
		SourceSystemID:   id(9),
		DestSystemID:     id(10),
		ImportCurrencyID: def.ID,
		CrossSystem:      false,
		Def:              def,
		StateIn: &currency.State{
			Currencies: def.Currencies,
			Reserves:   []int64{1000000},
			Weights:    def.Weights,
			Supply:     1000000,
		},
		Export:               exp,
		Transfers:            transfers,
		Gate:                 upgrade.NewGate(1),
		LaunchPhase:          launch.PhasePostLaunch,
		FeeSchedule:          FeeSchedule{TransactionTransferFee: 0},
		NativeCurrencyID:     def.ID,
		PriceOracle:          stubOracle{price: currency.Price(currency.SatoshiDen), ok: true},
		ArbitrageBook:        noOffersBook{},
		ArbitrageConditions:  arbitrage.Conditions{},
		ClaimedFeeRecipient:  exporterDest,
		Deposits:             nil,
	}
}

func TestRunHappyPathReserveToNative(t *testing.T) {
	reserveA := id(1)
	rt := mustTransfer(t, reserveA, id(100), 1000000, 0)
	p := basicParams(t, []*reservetransfer.ReserveTransfer{rt})

	result, err := Run(p)
	if err != nil {
		t.Fatalf("Run: %+v", err)
	}
	if result.Import.NumOutputs != 1 {
		t.Errorf("NumOutputs = %d, want 1", result.Import.NumOutputs)
	}
	if result.Import.Flags.Has(FlagSameChain) == false {
		t.Error("expected FlagSameChain for a non-cross-system import")
	}
	if result.Import.Flags.Has(FlagPostLaunch) == false {
		t.Error("expected FlagPostLaunch given LaunchPhase=PhasePostLaunch")
	}
}

func TestRunRejectsTransferHashMismatch(t *testing.T) {
	reserveA := id(1)
	rt := mustTransfer(t, reserveA, id(100), 1000000, 0)
	p := basicParams(t, []*reservetransfer.ReserveTransfer{rt})
	p.Export.HashReserveTransfers = transferhash.HashReserveTransfers(nil) // doesn't match the committed transfers

	_, err := Run(p)
	if err == nil {
		t.Fatal("expected an error when the recomputed transfer hash doesn't match the export's committed value")
	}
}

func TestRunRejectsFeeRecipientMismatch(t *testing.T) {
	reserveA := id(1)
	rt := mustTransfer(t, reserveA, id(100), 1000000, 0)
	p := basicParams(t, []*reservetransfer.ReserveTransfer{rt})
	p.ClaimedFeeRecipient = destination.New(destination.TypePubKeyHash, []byte{9, 9, 9})

	_, err := Run(p)
	if err == nil {
		t.Fatal("expected an error when the claimed fee recipient does not match the exporter")
	}
}

func TestRunRequiresProofForCrossSystem(t *testing.T) {
	reserveA := id(1)
	rt := mustTransfer(t, reserveA, id(100), 1000000, 0)
	p := basicParams(t, []*reservetransfer.ReserveTransfer{rt})
	p.CrossSystem = true

	_, err := Run(p)
	if err == nil {
		t.Fatal("expected an error when a cross-system import has no proof")
	}
}

func TestRunRefundPathPaysBackReserveValues(t *testing.T) {
	reserveA := id(1)
	rt := mustTransfer(t, reserveA, id(100), 1000000, 0)
	p := basicParams(t, []*reservetransfer.ReserveTransfer{rt})
	p.LaunchPhase = launch.PhaseRefunding

	result, err := Run(p)
	if err != nil {
		t.Fatalf("Run: %+v", err)
	}
	if !result.RefundIssued {
		t.Error("expected RefundIssued=true in the refunding phase")
	}
	if len(result.ConversionResult.Outputs) != 1 || result.ConversionResult.Outputs[0].Amount != 1000000 {
		t.Errorf("refund should pay back the raw reserve value, got %+v", result.ConversionResult.Outputs)
	}
	if !result.ConversionResult.StateOut.Flags.Has(currency.StateFlagRefunding) {
		t.Error("expected the refunding state flag to be set on the resulting state")
	}
}
