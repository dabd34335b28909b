// Package currency implements component A (CurrencyState / Conversion Math)
// and the Currency entity of spec.md §3: a currency's static definition plus
// the pure Bancor-style conversion math that turns a batch of
// ReserveTransfers into new reserves/supply and per-currency prices.
package currency

import (
	"github.com/pbaaschain/pbaasd/destination"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// Options is the currency option bitset (spec.md §3).
type Options uint32

const (
	OptionFractional Options = 1 << iota
	OptionToken
	OptionPBaaSChain
	OptionGateway
	OptionGatewayConverter
	OptionNameController
	OptionNFTToken
)

// Has reports whether o is set.
func (opts Options) Has(o Options) bool { return opts&o != 0 }

// ProofProtocol names how a currency's cross-system state is proven.
type ProofProtocol uint8

const (
	ProofProtocolInvalid ProofProtocol = iota
	// ProofProtocolPBaaSMMR proves state via the PBaaS merkle-mountain-range
	// notarization chain (component G).
	ProofProtocolPBaaSMMR
	// ProofProtocolETHNotarization proves state via an Ethereum-style
	// state-root notarization.
	ProofProtocolETHNotarization
	// ProofProtocolChainID is a centralized, non-cryptographic proof used
	// only by gateway currencies under direct controller custody; it is the
	// only protocol mint/burn-change-weight operations are permitted under
	// (spec.md §4.A).
	ProofProtocolChainID
)

// Definition is a currency's immutable launch-time definition (spec.md §3).
type Definition struct {
	ID             chainhash.ID
	Name           string
	Parent         chainhash.ID
	SystemID       chainhash.ID
	LaunchSystemID chainhash.ID
	GatewayID      chainhash.ID
	Options        Options
	ProofProtocol  ProofProtocol

	// Currencies, Weights, and Conversions are parallel arrays describing
	// the reserve basket of a Fractional currency: Currencies[i] is backed
	// at Weights[i] of the basket and launches at Conversions[i] units of
	// Currencies[i] per unit of this currency.
	Currencies  []chainhash.ID
	Weights     []float64
	Conversions []float64

	PreAllocation            map[string]int64 // recipient (destination.String()) -> amount
	GatewayConverterIssuance int64

	StartBlock              uint64
	EndBlock                uint64
	InitialFractionalSupply int64
	MinPreconvert           []int64
	MaxPreconvert           []int64
}

// DeriveID computes a CurrencyID as a function of parent + name, per
// spec.md §3 ("id is a function of parent + name").
func DeriveID(parent chainhash.ID, name string) chainhash.ID {
	preimage := make([]byte, 0, chainhash.IDSize+len(name))
	preimage = append(preimage, parent[:]...)
	preimage = append(preimage, name...)
	return chainhash.NewID(preimage)
}

// Validate checks the invariants spec.md §3 states for a Currency
// definition.
func (d *Definition) Validate() error {
	if d.ID != DeriveID(d.Parent, d.Name) {
		return errors.New("currency: id is not a function of parent+name")
	}

	if d.Options.Has(OptionFractional) {
		n := len(d.Currencies)
		if n == 0 {
			return errors.New("currency: fractional currency has empty reserve basket")
		}
		if len(d.Weights) != n || len(d.Conversions) != n {
			return errors.New("currency: currencies/weights/conversions size mismatch")
		}
		var weightSum float64
		for _, w := range d.Weights {
			if w <= 0 {
				return errors.New("currency: non-positive reserve weight")
			}
			weightSum += w
		}
		const epsilon = 1e-9
		if weightSum < 1-epsilon || weightSum > 1+epsilon {
			return errors.Errorf("currency: reserve weights sum to %f, want 1.0", weightSum)
		}
		if len(d.MinPreconvert) != 0 && len(d.MinPreconvert) != n {
			return errors.New("currency: minPreconvert size mismatch")
		}
		if len(d.MaxPreconvert) != 0 && len(d.MaxPreconvert) != n {
			return errors.New("currency: maxPreconvert size mismatch")
		}
	}

	return nil
}

// MintBurnPermitted reports whether d's currency may ever be the subject of
// a mint / burn-change-weight transfer: only centralized proofProtocol
// currencies, and never during pre-launch (spec.md §4.A).
func (d *Definition) MintBurnPermitted(isPreLaunch bool) bool {
	if isPreLaunch {
		return false
	}
	return d.ProofProtocol == ProofProtocolChainID
}

// ReserveIndex returns the index of reserveID within d.Currencies, or -1.
func (d *Definition) ReserveIndex(reserveID chainhash.ID) int {
	for i, id := range d.Currencies {
		if id == reserveID {
			return i
		}
	}
	return -1
}

// PreAllocationDestination returns the pre-allocation amount recorded for
// dest, or 0 if dest has none.
func (d *Definition) PreAllocationDestination(dest destination.Destination) int64 {
	return d.PreAllocation[dest.String()]
}
