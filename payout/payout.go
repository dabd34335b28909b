// Package payout defines the small, shared on-chain output shape produced by
// conversion math, the reserve-deposit ledger, and the importer: a typed
// recipient paid a given amount of a given currency. It exists so those
// packages don't each invent their own (currency, amount, destination)
// tuple.
package payout

import (
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

// Output is one payment: amount of currencyID to dest.
type Output struct {
	CurrencyID chainhash.ID
	Amount     int64
	Dest       destination.Destination
}

// ReserveDepositChange is a reserve-deposit change output: the remainder of
// a controller's escrow after an import spends it, restored as a fresh
// reserve deposit (spec.md §3 ReserveDeposit, §4.C).
type ReserveDepositChange struct {
	ControllingID chainhash.ID
	Values        map[chainhash.ID]int64
}
