package reservedeposit

import (
	"testing"

	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

func id(b byte) chainhash.ID {
	var i chainhash.ID
	i[0] = b
	return i
}

func TestCheckImportBalanceAccepts(t *testing.T) {
	cur := id(1)
	err := CheckImportBalance(ImportBalanceInputs{
		Spent:      map[chainhash.ID]int64{cur: 100},
		Imported:   map[chainhash.ID]int64{cur: 50},
		NewDeposits: map[chainhash.ID]int64{cur: 20},
		Payouts:     map[chainhash.ID]int64{cur: 130},
	})
	if err != nil {
		t.Errorf("a balanced import should not error: %+v", err)
	}
}

func TestCheckImportBalanceRejectsMismatch(t *testing.T) {
	cur := id(1)
	err := CheckImportBalance(ImportBalanceInputs{
		Spent:    map[chainhash.ID]int64{cur: 100},
		Payouts:  map[chainhash.ID]int64{cur: 130},
	})
	if err == nil {
		t.Fatal("expected an error for an unbalanced import")
	}
}

func TestCheckImportBalanceCountsOnlyPositiveMint(t *testing.T) {
	cur := id(1)
	err := CheckImportBalance(ImportBalanceInputs{
		Spent:         map[chainhash.ID]int64{cur: 100},
		PrimaryMinted: map[chainhash.ID]int64{cur: -50}, // negative: a burn, not a mint — ignored here
		Payouts:       map[chainhash.ID]int64{cur: 100},
	})
	if err != nil {
		t.Errorf("a negative PrimaryMinted entry should be treated as zero, not subtracted: %+v", err)
	}
}

func TestCheckImportBalanceAccountsPrimaryBurned(t *testing.T) {
	cur := id(1)
	err := CheckImportBalance(ImportBalanceInputs{
		Imported:      map[chainhash.ID]int64{cur: 150},
		PrimaryBurned: map[chainhash.ID]int64{cur: 50},
		Payouts:       map[chainhash.ID]int64{cur: 100},
	})
	if err != nil {
		t.Errorf("imports should balance against payouts plus the burn magnitude: %+v", err)
	}
}

func TestCheckImportBalanceAllowsTransitionSlackOnlyWhenFlagged(t *testing.T) {
	cur := id(1)
	inputs := ImportBalanceInputs{
		Spent:   map[chainhash.ID]int64{cur: 100},
		Payouts: map[chainhash.ID]int64{cur: 100 + ClearConvertTransitionSlack + 1},
	}
	if err := CheckImportBalance(inputs); err == nil {
		t.Fatal("expected an error when the discrepancy exceeds the transition slack even with the flag unset")
	}
	inputs.AllowTransitionSlack = true
	if err := CheckImportBalance(inputs); err == nil {
		t.Fatal("a 1-unit discrepancy beyond the slack should still fail even with the flag set")
	}
}

func TestCheckImportBalanceIgnoresUnreferencedCurrencies(t *testing.T) {
	err := CheckImportBalance(ImportBalanceInputs{})
	if err != nil {
		t.Errorf("an import touching no currencies should trivially balance: %+v", err)
	}
}
