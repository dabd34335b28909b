// Package transferhash implements component L: the deterministic hash of an
// ordered batch of ReserveTransfers that an export commits to and an
// importer verifies against (spec.md §4.L, §8 property 1).
//
// The domain-separation prefix bytes used below are a placeholder: spec.md
// §9 ("Open questions") is explicit that the real prefixing is legacy and
// must be copied bit-exact from the reference implementation's test
// vectors, not reinvented. HashDomainReserveTransfers is kept as a single,
// named constant so that swapping in the real prefix later is a one-line
// change with no call-site churn.
package transferhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/reservetransfer"
)

// HashDomainReserveTransfers prefixes every hashed transfer batch. See the
// package doc comment: this value is an explicit placeholder pending the
// reference implementation's test vectors (spec.md §9).
var HashDomainReserveTransfers = []byte("PBAAS.ReserveTransfers.v1")

// Ordered is a ReserveTransfer annotated with the source-chain coordinates
// spec.md §4.L requires for canonical ordering: "by (source-block-height,
// source-transaction-index, source-output-index)".
type Ordered struct {
	Transfer          *reservetransfer.ReserveTransfer
	SourceHeight      uint64
	SourceTxIndex     uint32
	SourceOutputIndex uint32
}

// SortOrdered sorts transfers in place into the canonical order spec.md
// §4.L requires. It is exported separately from HashReserveTransfers so
// export can re-use the same ordering when it builds the batch's transaction
// input list.
func SortOrdered(transfers []Ordered) {
	// Simple insertion sort: batches are small (bounded by the exporter's
	// per-block soft limits), and keeping this allocation-free keeps the
	// hash path boring — no sort.Interface plumbing for three comparisons.
	for i := 1; i < len(transfers); i++ {
		for j := i; j > 0 && less(transfers[j], transfers[j-1]); j-- {
			transfers[j], transfers[j-1] = transfers[j-1], transfers[j]
		}
	}
}

func less(a, b Ordered) bool {
	if a.SourceHeight != b.SourceHeight {
		return a.SourceHeight < b.SourceHeight
	}
	if a.SourceTxIndex != b.SourceTxIndex {
		return a.SourceTxIndex < b.SourceTxIndex
	}
	return a.SourceOutputIndex < b.SourceOutputIndex
}

// Serialize writes the deterministic encoding of a single ReserveTransfer
// used as input to the batch hash: flags, fee currency/amount, the
// reserveValues map in ascending CurrencyID order (map iteration order is
// not deterministic in Go, so callers must not rely on range order
// elsewhere), destCurrencyID, destSystemID, secondReserveID, and the
// destination payload.
func Serialize(w *bytes.Buffer, rt *reservetransfer.ReserveTransfer) {
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(rt.Flags()))
	w.Write(tmp[:4])

	feeCur := rt.FeeCurrencyID()
	w.Write(feeCur[:])
	binary.LittleEndian.PutUint64(tmp[:8], uint64(rt.NFees()))
	w.Write(tmp[:8])

	values := rt.ReserveValues()
	ids := make([]chainhash.ID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sortIDs(ids)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(ids)))
	w.Write(tmp[:4])
	for _, id := range ids {
		w.Write(id[:])
		binary.LittleEndian.PutUint64(tmp[:8], uint64(values[id]))
		w.Write(tmp[:8])
	}

	destCur := rt.DestCurrencyID()
	w.Write(destCur[:])
	destSys := rt.DestSystemID()
	w.Write(destSys[:])
	secondRes := rt.SecondReserveID()
	w.Write(secondRes[:])

	dest := rt.Destination()
	tmp[0] = byte(dest.Type)
	w.Write(tmp[:1])
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(dest.Bytes)))
	w.Write(tmp[:4])
	w.Write(dest.Bytes)
}

func sortIDs(ids []chainhash.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j].Cmp(ids[j-1]) < 0; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// HashReserveTransfers computes H(domain || T1 || T2 || ... || Tn) over
// transfers already in canonical order (see SortOrdered). It is the value
// committed in both CrossChainExport.hashReserveTransfers and
// CrossChainImport.hashReserveTransfers; any mismatch between the two fails
// validation (spec.md §3, §4.L).
func HashReserveTransfers(transfers []*reservetransfer.ReserveTransfer) chainhash.Hash {
	buf := new(bytes.Buffer)
	buf.Write(HashDomainReserveTransfers)
	for _, rt := range transfers {
		Serialize(buf, rt)
	}
	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}
