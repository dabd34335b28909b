// Package chainhash implements the fixed-size opaque blob types the engine
// hashes and compares against: a 256-bit Hash for transaction/export/import
// identity (grounded on verus's base_blob<256>/uint256), and a 160-bit ID for
// CurrencyID/SystemID (grounded on daglabs-btcd's ripemd160 pubkey-hash
// addresses). Both compare by byte order, matching the legacy memcmp-based
// ordering the spec requires bit-exact.
package chainhash

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// HashSize is the size, in bytes, of a Hash.
const HashSize = 32

// IDSize is the size, in bytes, of an ID (CurrencyID/SystemID).
const IDSize = 20

// Hash is a 256-bit opaque blob, little-endian in its wire form like every
// other legacy hash in this family.
type Hash [HashSize]byte

// ID is a 160-bit opaque identifier, as spec.md §3 requires for CurrencyID.
type ID [IDSize]byte

// IsNull reports whether the hash is the all-zero value.
func (h Hash) IsNull() bool {
	return h == Hash{}
}

// Cmp orders two hashes byte-for-byte, the same total order the original
// base_blob::operator< gives via memcmp.
func (h Hash) Cmp(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// String returns the big-endian hex display form (legacy hashes print
// reversed relative to their little-endian wire encoding).
func (h Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

// NewHashFromStr parses the big-endian hex display form back into a Hash.
func NewHashFromStr(s string) (*Hash, error) {
	if len(s) != HashSize*2 {
		return nil, fmt.Errorf("hash string has invalid length %d, expected %d", len(s), HashSize*2)
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var h Hash
	for i, b := range buf {
		h[HashSize-1-i] = b
	}
	return &h, nil
}

// IsNull reports whether id is the all-zero value.
func (id ID) IsNull() bool {
	return id == ID{}
}

// Cmp orders two IDs byte-for-byte.
func (id ID) Cmp(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// String returns the hex display form of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// NewID derives a CurrencyID/SystemID the way the legacy chain derives
// address pubkey-hashes: the RIPEMD160 digest of preimage is the opaque
// 160-bit identifier. Per spec.md §3, a currency's id is a function of
// parent + name; currency.DeriveID passes the raw parent || name bytes as
// preimage.
func NewID(preimage []byte) ID {
	h := ripemd160.New()
	h.Write(preimage)
	sum := h.Sum(nil)
	var id ID
	copy(id[:], sum)
	return id
}
