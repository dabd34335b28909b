package export

import (
	"testing"

	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/reservetransfer"
	"github.com/pbaaschain/pbaasd/upgrade"
)

func id(b byte) chainhash.ID {
	var i chainhash.ID
	i[0] = b
	return i
}

type stubChain struct {
	entropyBit0 map[uint64]byte
	coinbase    destination.Destination
}

func (c stubChain) CurrentHeight() uint64 { return 1000 }

func (c stubChain) EntropyAt(height uint64) chainhash.Hash {
	var h chainhash.Hash
	h[0] = c.entropyBit0[height]
	return h
}

func (c stubChain) CoinbaseDestinations(height uint64) []destination.Destination {
	return []destination.Destination{c.coinbase}
}

func mustTransfer(t *testing.T, reserveID chainhash.ID, amount int64) *reservetransfer.ReserveTransfer {
	t.Helper()
	rt, err := reservetransfer.NewReserveTransfer(reservetransfer.Params{
		FeeCurrencyID:  reserveID,
		NFees:          1,
		ReserveValues:  map[chainhash.ID]int64{reserveID: amount},
		DestCurrencyID: id(200),
		Destination:    destination.New(destination.TypePubKeyHash, []byte{1, 2, 3}),
	})
	if err != nil {
		t.Fatalf("building test transfer: %+v", err)
	}
	return rt
}

func basePlanParams(pending []PendingTransfer) PlanParams {
	return PlanParams{
		SourceSystemID: id(1),
		DestSystemID:   id(2),
		DestCurrencyID: id(3),
		Gate:           upgrade.NewGate(1),
		Chain: stubChain{
			entropyBit0: map[uint64]byte{},
			coinbase:    destination.New(destination.TypePubKeyHash, []byte{9, 9, 9}),
		},
		Thresholds: Thresholds{MinInputs: 2, MinBlocks: 10},
		Pending:    pending,
		WallHeight: 1000,
	}
}

func TestPlanNothingPending(t *testing.T) {
	_, _, ok, reason, err := Plan(basePlanParams(nil))
	if err != nil {
		t.Fatalf("Plan: %+v", err)
	}
	if ok {
		t.Fatal("expected ok=false with no pending transfers")
	}
	if reason != ReasonNothingPending {
		t.Errorf("reason = %v, want ReasonNothingPending", reason)
	}
}

func TestPlanOracleGated(t *testing.T) {
	p := basePlanParams([]PendingTransfer{{Height: 1, Transfer: mustTransfer(t, id(5), 100)}})
	p.Gate.SetDisablePBaaSCrossChain(true)
	p.IsPBaaSDest = true

	_, _, ok, reason, err := Plan(p)
	if err != nil {
		t.Fatalf("Plan: %+v", err)
	}
	if ok || reason != ReasonOracleGated {
		t.Fatalf("expected ReasonOracleGated, got ok=%v reason=%v", ok, reason)
	}
}

func TestPlanBelowThreshold(t *testing.T) {
	p := basePlanParams([]PendingTransfer{{Height: 1, Transfer: mustTransfer(t, id(5), 100)}})
	p.WallHeight = 5 // under MinBlocks=10 since the (absent) prior export
	_, _, ok, reason, err := Plan(p)
	if err != nil {
		t.Fatalf("Plan: %+v", err)
	}
	if ok || reason != ReasonBelowThreshold {
		t.Fatalf("expected ReasonBelowThreshold with 1 transfer under MinInputs=2, got ok=%v reason=%v", ok, reason)
	}
}

func TestPlanCommitsAtMinInputs(t *testing.T) {
	pending := []PendingTransfer{
		{Height: 1, TxIndex: 0, Transfer: mustTransfer(t, id(5), 100)},
		{Height: 2, TxIndex: 0, Transfer: mustTransfer(t, id(5), 200)},
	}
	p := basePlanParams(pending)

	exp, covered, ok, reason, err := Plan(p)
	if err != nil {
		t.Fatalf("Plan: %+v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true, got reason=%v", reason)
	}
	if len(covered) != 2 {
		t.Fatalf("expected both transfers covered, got %d", len(covered))
	}
	if exp.NumInputs != 2 {
		t.Errorf("NumInputs = %d, want 2", exp.NumInputs)
	}
	if exp.TotalAmounts[id(5)] != 300 {
		t.Errorf("TotalAmounts[id(5)] = %d, want 300", exp.TotalAmounts[id(5)])
	}
	if exp.SourceHeightEnd != 3 {
		t.Errorf("SourceHeightEnd = %d, want 3 (half-open past last covered height)", exp.SourceHeightEnd)
	}
}

func TestPlanOrdersBeforeCutting(t *testing.T) {
	pending := []PendingTransfer{
		{Height: 5, TxIndex: 1, Transfer: mustTransfer(t, id(5), 50)},
		{Height: 2, TxIndex: 0, Transfer: mustTransfer(t, id(5), 10)},
		{Height: 2, TxIndex: 1, Transfer: mustTransfer(t, id(5), 20)},
	}
	p := basePlanParams(pending)
	_, covered, ok, _, err := Plan(p)
	if err != nil {
		t.Fatalf("Plan: %+v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	for i := 1; i < len(covered); i++ {
		a, b := covered[i-1], covered[i]
		if a.Height > b.Height || (a.Height == b.Height && a.TxIndex > b.TxIndex) {
			t.Fatalf("covered transfers not ordered: %+v then %+v", a, b)
		}
	}
}
