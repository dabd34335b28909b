// Package proof implements component G: the adapter that accepts a
// PartialTransactionProof against a confirmed remote ProofRoot and produces
// the committed transaction, rejecting anything that doesn't root in that
// ProofRoot (spec.md §4.G).
package proof

import (
	"crypto/sha256"

	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

// Kind classifies a ValidationFailure-equivalent rejection from this
// package, letting callers distinguish them from ordinary errors without
// string matching (spec.md §7 ProofFailure).
type Kind int

const (
	KindStateRootMismatch Kind = iota
	KindTxHashMismatch
	KindIndexOutOfRange
	KindOversizedProof
)

// Error is a typed ProofFailure (spec.md §7): "the proof does not root in a
// confirmed proof root, or the claimed state root mismatches. Rejected and
// not retried on the same evidence."
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func fail(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// MerkleProof is a single sibling-hash path from a leaf (the export
// transaction's hash) up to a root, along with the index/count needed to
// decide left/right ordering at each level.
type MerkleProof struct {
	LeafHash  chainhash.Hash
	Siblings  []chainhash.Hash
	LeafIndex uint32
	NumLeaves uint32
}

// ComputeRoot recomputes the merkle root a MerkleProof claims to root at,
// using the same left-concatenation-first convention the teacher's
// merkle-root construction uses for its block merkle trees.
func (m MerkleProof) ComputeRoot() chainhash.Hash {
	cur := m.LeafHash
	idx := m.LeafIndex
	for _, sib := range m.Siblings {
		var buf [64]byte
		if idx%2 == 0 {
			copy(buf[:32], cur[:])
			copy(buf[32:], sib[:])
		} else {
			copy(buf[:32], sib[:])
			copy(buf[32:], cur[:])
		}
		first := sha256.Sum256(buf[:])
		cur = sha256.Sum256(first[:])
		idx /= 2
	}
	return cur
}

// PartialTransactionProof is the proof object spec.md §3 NotaryEvidence
// wraps: a merkle path rooting the export transaction's hash at a claimed
// state root, plus the transaction bytes it proves (and, optionally, proven
// input outputs and a partial coinbase for co-launch cases). It must not be
// trusted on block hashes alone — only the stateRoot-rooted proof is
// authoritative (spec.md §4.G).
type PartialTransactionProof struct {
	TxID             chainhash.Hash
	ClaimedStateRoot chainhash.Hash
	Path             MerkleProof
	TxBytes          []byte
	ProvenInputs     map[uint32][]byte // input index -> referenced prior output bytes, if proven
	PartialCoinbase  []byte            // proven coinbase prefix, for co-launch cases
}

// MaxSingleOutputProofSize bounds a proof stored in one on-chain output
// before it must be broken into a multi-part NotaryEvidence sequence
// (spec.md §3, §4.G).
const MaxSingleOutputProofSize = 8000

// Verify checks p against expectedTxID and the latest confirmed root for
// the system the proof claims to be rooted in. On success it returns the
// proven transaction bytes; the caller (importer) is responsible for
// decoding them.
func Verify(p *PartialTransactionProof, expectedTxID chainhash.Hash, root currency.ProofRoot) ([]byte, error) {
	if len(p.TxBytes) > MaxSingleOutputProofSize && len(p.ProvenInputs) == 0 && len(p.PartialCoinbase) == 0 {
		// A proof this size that wasn't split is almost certainly
		// malformed rather than legitimately oversized; still classify
		// it distinctly so callers can log accordingly.
		return nil, fail(KindOversizedProof, "proof: single-output proof exceeds max size and was not split")
	}
	if p.ClaimedStateRoot != root.StateRoot {
		return nil, fail(KindStateRootMismatch, "proof: claimed state root does not match the confirmed proof root")
	}
	computedRoot := p.Path.ComputeRoot()
	if computedRoot != root.StateRoot {
		return nil, fail(KindStateRootMismatch, "proof: merkle path does not root at the confirmed proof root")
	}
	if p.TxID != expectedTxID {
		return nil, fail(KindTxHashMismatch, "proof: proven transaction id does not match expected export txid")
	}
	if p.Path.LeafHash != p.TxID {
		return nil, fail(KindTxHashMismatch, "proof: merkle leaf does not match the proven transaction id")
	}
	return p.TxBytes, nil
}

// VerifyInput returns the proven bytes of input index idx, or an
// out-of-range ProofFailure if the proof didn't prove that input (spec.md
// §4.G: "index-out-of-range on the retrieved transaction").
func (p *PartialTransactionProof) VerifyInput(idx uint32) ([]byte, error) {
	bytes, ok := p.ProvenInputs[idx]
	if !ok {
		return nil, fail(KindIndexOutOfRange, "proof: input index not present in proof")
	}
	return bytes, nil
}
