package feelottery

import (
	"testing"

	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

func entropy(height uint64, b byte) BlockEntropy {
	var h chainhash.Hash
	h[0] = b
	return BlockEntropy{
		Height:           height,
		EntropyComponent: h,
		CoinbaseDestinations: []destination.Destination{
			destination.New(destination.TypeService, []byte{1}),
			destination.New(destination.TypePubKeyHash, []byte{b, b}),
		},
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	var currencyID chainhash.ID
	currencyID[0] = 7
	contributing := []BlockEntropy{entropy(100, 1), entropy(101, 2), entropy(102, 3)}

	height1, recipient1, err := Select(currencyID, 102, contributing)
	if err != nil {
		t.Fatalf("Select: %+v", err)
	}
	height2, recipient2, err := Select(currencyID, 102, contributing)
	if err != nil {
		t.Fatalf("Select: %+v", err)
	}
	if height1 != height2 || !recipient1.Equal(recipient2) {
		t.Fatalf("Select is not deterministic: (%d, %v) != (%d, %v)", height1, recipient1, height2, recipient2)
	}
}

func TestSelectSkipsServiceDestinations(t *testing.T) {
	var currencyID chainhash.ID
	_, recipient, err := Select(currencyID, 1, []BlockEntropy{entropy(1, 5)})
	if err != nil {
		t.Fatalf("Select: %+v", err)
	}
	if recipient.Type == destination.TypeService {
		t.Errorf("Select must never return a service destination, got %v", recipient)
	}
}

func TestSelectRejectsEmptyInput(t *testing.T) {
	var currencyID chainhash.ID
	if _, _, err := Select(currencyID, 1, nil); err == nil {
		t.Error("expected an error for no contributing blocks")
	}
}

func TestSelectOrderIndependent(t *testing.T) {
	var currencyID chainhash.ID
	ordered := []BlockEntropy{entropy(10, 1), entropy(11, 2), entropy(12, 3)}
	reversed := []BlockEntropy{entropy(12, 3), entropy(11, 2), entropy(10, 1)}

	h1, r1, err := Select(currencyID, 12, ordered)
	if err != nil {
		t.Fatalf("Select: %+v", err)
	}
	h2, r2, err := Select(currencyID, 12, reversed)
	if err != nil {
		t.Fatalf("Select: %+v", err)
	}
	if h1 != h2 || !r1.Equal(r2) {
		t.Errorf("Select should not depend on input order: (%d,%v) != (%d,%v)", h1, r1, h2, r2)
	}
}

func TestSelectRejectsAllServiceCoinbase(t *testing.T) {
	var currencyID chainhash.ID
	only := BlockEntropy{
		Height: 1,
		CoinbaseDestinations: []destination.Destination{
			destination.New(destination.TypeService, []byte{1}),
			destination.New(destination.TypeIndex, []byte{2}),
		},
	}
	if _, _, err := Select(currencyID, 1, []BlockEntropy{only}); err == nil {
		t.Error("expected an error when a coinbase has no eligible recipient")
	}
}
