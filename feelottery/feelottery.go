// Package feelottery implements component H: deterministic, miner-resistant
// selection of the block whose coinbase earns the batch's aggregated fees
// (spec.md §4.H).
package feelottery

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// BlockEntropy is the one per-block input the lottery needs: a
// per-block entropy component (combining more than one block field so no
// single miner controls it alone) and the ordered destinations of that
// block's coinbase's first output, from which the winning recipient is
// derived (spec.md §4.H).
type BlockEntropy struct {
	Height               uint64
	EntropyComponent     chainhash.Hash
	CoinbaseDestinations []destination.Destination
}

// HashDomainFeeLottery is the domain separator mixed into the selection
// seed, keeping it distinct from other hash domains in this engine.
var HashDomainFeeLottery = []byte("PBAAS.FEELOTTERY.v1")

// Select picks the winning height from contributing — the set of heights
// that contributed transfers to the batch closing at sourceHeightEnd for
// destCurrencyID — and derives its recipient destination. It is a pure
// function of its inputs, uniformly distributed over contributing given a
// uniformly distributed EntropyComponent per block (spec.md §4.H).
func Select(destCurrencyID chainhash.ID, sourceHeightEnd uint64, contributing []BlockEntropy) (winnerHeight uint64, recipient destination.Destination, err error) {
	if len(contributing) == 0 {
		return 0, destination.Destination{}, errors.New("feelottery: no contributing blocks")
	}

	ordered := append([]BlockEntropy(nil), contributing...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Height < ordered[j].Height })

	seed := combinedSeed(destCurrencyID, sourceHeightEnd, ordered)
	winnerIdx := seed % uint64(len(ordered))
	winner := ordered[winnerIdx]

	recipient, err = recipientFromCoinbase(winner.CoinbaseDestinations)
	if err != nil {
		return 0, destination.Destination{}, errors.Wrapf(err, "feelottery: block %d", winner.Height)
	}
	return winner.Height, recipient, nil
}

// combinedSeed folds every contributing block's entropy component together
// so that no single block (and therefore no single miner) determines the
// outcome alone.
func combinedSeed(destCurrencyID chainhash.ID, sourceHeightEnd uint64, ordered []BlockEntropy) uint64 {
	h := sha256.New()
	h.Write(HashDomainFeeLottery)
	h.Write(destCurrencyID[:])
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], sourceHeightEnd)
	h.Write(heightBuf[:])
	for _, b := range ordered {
		h.Write(b.EntropyComponent[:])
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// recipientFromCoinbase returns the first destination that is neither a
// service (eval-key) pseudo-destination nor an index-type destination
// (spec.md §4.H).
func recipientFromCoinbase(dests []destination.Destination) (destination.Destination, error) {
	for _, d := range dests {
		if d.IsServiceOrIndex() {
			continue
		}
		if !d.IsValid() {
			continue
		}
		return d, nil
	}
	return destination.Destination{}, errors.New("coinbase has no eligible recipient destination")
}
