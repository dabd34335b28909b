package reservetransfer

import (
	"strings"
	"testing"

	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

func id(b byte) chainhash.ID {
	var i chainhash.ID
	i[0] = b
	return i
}

func validDest() destination.Destination {
	return destination.New(destination.TypePubKeyHash, []byte{1, 2, 3})
}

func TestNewReserveTransferRejectsNegativeFee(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		NFees:         -1,
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error for a negative fee amount")
	}
}

func TestNewReserveTransferRejectsEmptyReserveValues(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error for empty reserveValues")
	}
}

func TestNewReserveTransferRejectsTooManyReserveValues(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100, id(2): 100, id(3): 100},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error for more than MaxReserveValues reserve values")
	}
}

func TestNewReserveTransferRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 0},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error for a zero-amount reserve value")
	}
}

func TestNewReserveTransferRejectsInvalidDestination(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid (zero-value) destination")
	}
}

func TestNewReserveTransferRejectsArbitrageFlagConflicts(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:         FlagArbitrageOnly | FlagCrossSystem,
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error when FlagArbitrageOnly coexists with FlagCrossSystem")
	}
}

func TestNewReserveTransferRejectsReserveToReserveWithOneValue(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:           FlagReserveToReserve,
		FeeCurrencyID:   id(1),
		ReserveValues:   map[chainhash.ID]int64{id(1): 100},
		SecondReserveID: id(2),
		Destination:     validDest(),
	})
	if err == nil {
		t.Fatal("expected an error for reserve-to-reserve with only one reserve value")
	}
}

func TestNewReserveTransferRejectsReserveToReserveSecondIDNotPresent(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:           FlagReserveToReserve,
		FeeCurrencyID:   id(1),
		ReserveValues:   map[chainhash.ID]int64{id(1): 100, id(2): 100},
		SecondReserveID: id(9),
		Destination:     validDest(),
	})
	if err == nil {
		t.Fatal("expected an error when secondReserveID is absent from reserveValues")
	}
}

func TestNewReserveTransferAcceptsValidReserveToReserve(t *testing.T) {
	rt, err := NewReserveTransfer(Params{
		Flags:           FlagReserveToReserve,
		FeeCurrencyID:   id(1),
		ReserveValues:   map[chainhash.ID]int64{id(1): 100, id(2): 100},
		SecondReserveID: id(2),
		Destination:     validDest(),
	})
	if err != nil {
		t.Fatalf("expected a valid reserve-to-reserve transfer to build, got: %+v", err)
	}
	if !rt.Flags().Has(FlagReserveToReserve) {
		t.Error("expected FlagReserveToReserve to be set")
	}
}

func TestNewReserveTransferRejectsOversizedNormalTransfer(t *testing.T) {
	values := map[chainhash.ID]int64{id(1): 100, id(2): 100}
	_, err := NewReserveTransfer(Params{
		FeeCurrencyID: id(1),
		ReserveValues: values,
		Destination: destination.Destination{
			Type:  destination.TypePubKeyHash,
			Bytes: make([]byte, MaxNormalTransferSize),
		},
	})
	if err == nil {
		t.Fatal("expected an error for a transfer whose destination payload blows past MaxNormalTransferSize")
	}
}

func TestNewReserveTransferAllowsLargeCurrencyExport(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:         FlagCurrencyExport,
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
		Destination: destination.Destination{
			Type:  destination.TypeID,
			Bytes: make([]byte, MaxNormalTransferSize+1), // bigger than a normal transfer allows
		},
	})
	if err != nil {
		t.Errorf("a currency-export transfer should tolerate payloads beyond MaxNormalTransferSize: %+v", err)
	}
}

func TestNewReserveTransferRejectsOversizedCurrencyExport(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:         FlagCurrencyExport,
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
		Destination: destination.Destination{
			Type:  destination.TypeID,
			Bytes: make([]byte, MaxCurrencyExportSize),
		},
	})
	if err == nil {
		t.Fatal("expected an error for a currency-export transfer exceeding MaxCurrencyExportSize")
	}
}

func TestNewReserveTransferRejectsPreconvertCrossSystem(t *testing.T) {
	_, err := NewReserveTransfer(Params{
		Flags:         FlagPreconvert | FlagCrossSystem,
		FeeCurrencyID: id(1),
		ReserveValues: map[chainhash.ID]int64{id(1): 100},
		Destination:   validDest(),
	})
	if err == nil {
		t.Fatal("expected an error when FlagPreconvert coexists with FlagCrossSystem")
	}
	if !strings.Contains(err.Error(), "preconvert") {
		t.Errorf("expected the preconvert/cross-system conflict in the error, got: %v", err)
	}
}

func TestTargetCurrencyAndSystemHonorsImportToSource(t *testing.T) {
	reserveID, destCur, destSys := id(1), id(2), id(3)
	rt, err := NewReserveTransfer(Params{
		Flags:          FlagImportToSource,
		FeeCurrencyID:  reserveID,
		ReserveValues:  map[chainhash.ID]int64{reserveID: 100},
		DestCurrencyID: destCur,
		DestSystemID:   destSys,
		Destination:    validDest(),
	})
	if err != nil {
		t.Fatalf("building transfer: %+v", err)
	}
	gotCur, gotSys := rt.TargetCurrencyAndSystem()
	if gotCur != reserveID || gotSys != destSys {
		t.Errorf("TargetCurrencyAndSystem() = (%v, %v), want (%v, %v) [reserve source, not destCurrencyID]", gotCur, gotSys, reserveID, destSys)
	}
}

func TestTargetCurrencyAndSystemDefault(t *testing.T) {
	reserveID, destCur, destSys := id(1), id(2), id(3)
	rt, err := NewReserveTransfer(Params{
		FeeCurrencyID:  reserveID,
		ReserveValues:  map[chainhash.ID]int64{reserveID: 100},
		DestCurrencyID: destCur,
		DestSystemID:   destSys,
		Destination:    validDest(),
	})
	if err != nil {
		t.Fatalf("building transfer: %+v", err)
	}
	gotCur, gotSys := rt.TargetCurrencyAndSystem()
	if gotCur != destCur || gotSys != destSys {
		t.Errorf("TargetCurrencyAndSystem() = (%v, %v), want (%v, %v)", gotCur, gotSys, destCur, destSys)
	}
}

func TestTotalCurrencyOutIncludesFee(t *testing.T) {
	reserveID, feeID := id(1), id(2)
	rt, err := NewReserveTransfer(Params{
		FeeCurrencyID: feeID,
		NFees:         10,
		ReserveValues: map[chainhash.ID]int64{reserveID: 100},
		Destination:   validDest(),
	})
	if err != nil {
		t.Fatalf("building transfer: %+v", err)
	}
	total := rt.TotalCurrencyOut()
	if total[reserveID] != 100 {
		t.Errorf("TotalCurrencyOut()[reserveID] = %d, want 100", total[reserveID])
	}
	if total[feeID] != 10 {
		t.Errorf("TotalCurrencyOut()[feeID] = %d, want 10", total[feeID])
	}
}

func TestReserveValuesReturnsACopy(t *testing.T) {
	reserveID := id(1)
	rt, err := NewReserveTransfer(Params{
		FeeCurrencyID: reserveID,
		ReserveValues: map[chainhash.ID]int64{reserveID: 100},
		Destination:   validDest(),
	})
	if err != nil {
		t.Fatalf("building transfer: %+v", err)
	}
	values := rt.ReserveValues()
	values[reserveID] = 999999
	if rt.ReserveValues()[reserveID] != 100 {
		t.Error("mutating the map returned by ReserveValues() should not affect the transfer's internal state")
	}
}
