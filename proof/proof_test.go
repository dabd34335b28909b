package proof

import (
	"testing"

	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

func leafHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

// buildValidProof constructs a single-sibling proof and its matching root,
// mirroring a 2-leaf merkle tree with txID at index 0.
func buildValidProof(txID chainhash.Hash) (MerkleProof, chainhash.Hash) {
	sibling := leafHash(0xAA)
	path := MerkleProof{
		LeafHash:  txID,
		Siblings:  []chainhash.Hash{sibling},
		LeafIndex: 0,
		NumLeaves: 2,
	}
	return path, path.ComputeRoot()
}

func TestVerifyAccepts(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	p := &PartialTransactionProof{
		TxID:             txID,
		ClaimedStateRoot: root,
		Path:             path,
		TxBytes:          []byte("tx-bytes"),
	}
	out, err := Verify(p, txID, currency.ProofRoot{StateRoot: root})
	if err != nil {
		t.Fatalf("Verify: %+v", err)
	}
	if string(out) != "tx-bytes" {
		t.Errorf("Verify returned %q, want %q", out, "tx-bytes")
	}
}

func TestVerifyRejectsStateRootMismatch(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	p := &PartialTransactionProof{TxID: txID, ClaimedStateRoot: root, Path: path, TxBytes: []byte("x")}

	var wrongRoot chainhash.Hash
	wrongRoot[0] = 0xFF
	_, err := Verify(p, txID, currency.ProofRoot{StateRoot: wrongRoot})
	assertKind(t, err, KindStateRootMismatch)
}

func TestVerifyRejectsRecomputedRootMismatch(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	// Tamper with a sibling so ComputeRoot no longer matches the claimed root.
	path.Siblings[0][0] ^= 0xFF
	p := &PartialTransactionProof{TxID: txID, ClaimedStateRoot: root, Path: path, TxBytes: []byte("x")}

	_, err := Verify(p, txID, currency.ProofRoot{StateRoot: root})
	assertKind(t, err, KindStateRootMismatch)
}

func TestVerifyRejectsTxHashMismatch(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	p := &PartialTransactionProof{TxID: txID, ClaimedStateRoot: root, Path: path, TxBytes: []byte("x")}

	differentExpected := leafHash(2)
	_, err := Verify(p, differentExpected, currency.ProofRoot{StateRoot: root})
	assertKind(t, err, KindTxHashMismatch)
}

func TestVerifyRejectsOversizedUnsplitProof(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	p := &PartialTransactionProof{
		TxID:             txID,
		ClaimedStateRoot: root,
		Path:             path,
		TxBytes:          make([]byte, MaxSingleOutputProofSize+1),
	}
	_, err := Verify(p, txID, currency.ProofRoot{StateRoot: root})
	assertKind(t, err, KindOversizedProof)
}

func TestVerifyAllowsOversizedSplitProof(t *testing.T) {
	txID := leafHash(1)
	path, root := buildValidProof(txID)
	p := &PartialTransactionProof{
		TxID:             txID,
		ClaimedStateRoot: root,
		Path:             path,
		TxBytes:          make([]byte, MaxSingleOutputProofSize+1),
		ProvenInputs:     map[uint32][]byte{0: []byte("input-0")},
	}
	if _, err := Verify(p, txID, currency.ProofRoot{StateRoot: root}); err != nil {
		t.Fatalf("a split oversized proof should be accepted: %+v", err)
	}
}

func TestVerifyInput(t *testing.T) {
	p := &PartialTransactionProof{ProvenInputs: map[uint32][]byte{3: []byte("in-3")}}
	out, err := p.VerifyInput(3)
	if err != nil {
		t.Fatalf("VerifyInput: %+v", err)
	}
	if string(out) != "in-3" {
		t.Errorf("VerifyInput(3) = %q, want %q", out, "in-3")
	}

	_, err = p.VerifyInput(4)
	assertKind(t, err, KindIndexOutOfRange)
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error of kind %d, got nil", want)
	}
	pErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *proof.Error, got %T: %v", err, err)
	}
	if pErr.Kind != want {
		t.Fatalf("error kind = %d, want %d (%v)", pErr.Kind, want, err)
	}
}
