// Package arbitrage implements component J: the importer-invoked hook that
// injects at most one arbitrage-only reserve transfer into an import batch
// when conditions allow (spec.md §4.J).
package arbitrage

import (
	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/reservetransfer"
)

// Offer is one entry in the local offer book: an outstanding, signed
// transaction proposing to convert AmountIn of InCurrencyID into
// OutCurrencyID, at a caller-computed ImpliedPrice. The underlying
// transaction (Tx) is only admitted to the mempool if the import it's
// injected into succeeds (spec.md §4.J).
type Offer struct {
	InCurrencyID  chainhash.ID
	OutCurrencyID chainhash.ID
	AmountIn      int64
	ImpliedPrice  currency.Price
	Dest          destination.Destination
	Tx            []byte // opaque serialized transaction, never interpreted by this package
}

// Book is the local offer book arbitrage selection draws from.
type Book interface {
	// OffersFor returns every outstanding offer converting currencyID into
	// some member of reachable.
	OffersFor(currencyID chainhash.ID, reachable map[chainhash.ID]struct{}) []Offer
}

// Conditions is the gate spec.md §4.J lists: arbitrage only runs when all
// of these hold.
type Conditions struct {
	AutoArbitrageEnabled bool
	ConfiguredCurrencies map[chainhash.ID]struct{} // currencies the operator has opted into arbitraging
	PostLaunch           bool
	Refunding            bool
}

// Eligible reports whether arbitrage may run at all for this import, before
// any offer-book lookup (spec.md §4.J gate).
func (c Conditions) Eligible(basket []chainhash.ID) bool {
	if !c.AutoArbitrageEnabled || !c.PostLaunch || c.Refunding {
		return false
	}
	for _, id := range basket {
		if _, ok := c.ConfiguredCurrencies[id]; ok {
			return true
		}
	}
	return false
}

// reachableWithin1Or2Hops returns every currency in basket (one hop, the
// fractional currency converts directly) plus the fractional currency
// itself (representing a second hop via re-conversion), per spec.md §4.J
// ("filters against baskets reachable in one or two conversions").
func reachableWithin1Or2Hops(fractionalID chainhash.ID, basket []chainhash.ID) map[chainhash.ID]struct{} {
	out := map[chainhash.ID]struct{}{fractionalID: {}}
	for _, id := range basket {
		out[id] = struct{}{}
	}
	return out
}

// SelectBest picks the single best offer to inject, across every
// ConfiguredCurrencies member that's also in basket, or (nil, false) if
// none qualify. "Best" is the offer with the highest ImpliedPrice among
// candidates, matching the governing conversion direction (spec.md §4.J:
// "Picks the best offer from a local offer book for each eligible
// currency").
func SelectBest(book Book, cond Conditions, fractionalID chainhash.ID, basket []chainhash.ID) (*Offer, bool) {
	if !cond.Eligible(basket) {
		return nil, false
	}
	reachable := reachableWithin1Or2Hops(fractionalID, basket)

	var best *Offer
	for _, id := range basket {
		if _, configured := cond.ConfiguredCurrencies[id]; !configured {
			continue
		}
		for _, offer := range book.OffersFor(id, reachable) {
			offer := offer
			if best == nil || offer.ImpliedPrice > best.ImpliedPrice {
				best = &offer
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// BuildTransfer turns the winning Offer into the single ARBITRAGE_ONLY
// reserve transfer the importer injects into its batch (spec.md §4.J). A
// RESERVE_TO_RESERVE transfer carries one reserve value per leg of the
// conversion: the amount going in at InCurrencyID, and the implied amount
// coming out at SecondReserveID (offer.ImpliedPrice, scaled by
// currency.SatoshiDen).
func BuildTransfer(offer *Offer, feeCurrencyID chainhash.ID, fee int64) (*reservetransfer.ReserveTransfer, error) {
	impliedOut := offer.AmountIn * int64(offer.ImpliedPrice) / currency.SatoshiDen
	return reservetransfer.NewReserveTransfer(reservetransfer.Params{
		Flags:         reservetransfer.FlagArbitrageOnly | reservetransfer.FlagReserveToReserve,
		FeeCurrencyID: feeCurrencyID,
		NFees:         fee,
		ReserveValues: map[chainhash.ID]int64{
			offer.InCurrencyID:  offer.AmountIn,
			offer.OutCurrencyID: impliedOut,
		},
		Destination:     offer.Dest,
		DestCurrencyID:  offer.OutCurrencyID,
		DestSystemID:    chainhash.ID{},
		SecondReserveID: offer.OutCurrencyID,
	})
}
