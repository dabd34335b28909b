// Package destination models the typed recipients a ReserveTransfer, a
// reserve-deposit change output, or a coinbase can pay to. It generalizes the
// teacher's util.Address (a pay-to-pubkey-hash/pay-to-script-hash interface)
// to the richer set of destination kinds the bridge needs: plain hash160
// destinations, identity/currency-controller destinations, a gateway-routed
// destination carrying the next leg's gateway ID, and the two pseudo-kinds
// (service, index) that the fee lottery must never select as a recipient.
package destination

import (
	"bytes"
	"fmt"

	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

// Type enumerates the kinds of destination a transfer output may carry.
type Type uint8

const (
	// TypeInvalid marks a zero-value Destination.
	TypeInvalid Type = iota
	// TypePubKeyHash pays a ripemd160 pubkey hash, as in a normal wallet payout.
	TypePubKeyHash
	// TypeScriptHash pays a ripemd160 script hash.
	TypeScriptHash
	// TypeID pays an identity or currency-controller ID directly.
	TypeID
	// TypeGateway routes to a gateway for an additional cross-system leg.
	TypeGateway
	// TypeService is the eval-key pseudo-destination used for on-chain
	// service outputs. It is never a valid fee-lottery recipient.
	TypeService
	// TypeIndex is an index-type pseudo-destination (e.g. a notarization
	// finalization reference). It is never a valid fee-lottery recipient.
	TypeIndex
)

func (t Type) String() string {
	switch t {
	case TypePubKeyHash:
		return "pubkeyhash"
	case TypeScriptHash:
		return "scripthash"
	case TypeID:
		return "id"
	case TypeGateway:
		return "gateway"
	case TypeService:
		return "service"
	case TypeIndex:
		return "index"
	default:
		return "invalid"
	}
}

// MaxAuxDestinations is the number of fallback destinations a Destination may
// carry, per spec.md §3 ("up to 3 auxiliary fallback destinations").
const MaxAuxDestinations = 3

// Destination is a typed payment recipient. GatewayID is set only when
// Type == TypeGateway and identifies the next leg's gateway system (spec.md
// §3, ReserveTransfer.destination.gatewayID). Aux carries up to
// MaxAuxDestinations fallback destinations used for cross-type addressing
// equivalence (spec.md §4.E step 4).
type Destination struct {
	Type      Type
	Bytes     []byte
	GatewayID *chainhash.ID
	Aux       []Destination
}

// New builds a plain (non-gateway, non-auxiliary) destination.
func New(typ Type, bytes []byte) Destination {
	return Destination{Type: typ, Bytes: append([]byte(nil), bytes...)}
}

// NewGateway builds a TypeGateway destination carrying the next leg's
// gateway ID alongside the underlying pay-to bytes.
func NewGateway(bytes []byte, gatewayID chainhash.ID) Destination {
	return Destination{Type: TypeGateway, Bytes: append([]byte(nil), bytes...), GatewayID: &gatewayID}
}

// IsValid reports whether d carries a recognized, non-zero-length payload.
func (d Destination) IsValid() bool {
	return d.Type != TypeInvalid && len(d.Bytes) > 0
}

// IsServiceOrIndex reports whether d is one of the two pseudo-destination
// kinds that component H (fee lottery) must skip when scanning a coinbase
// for its first real destination.
func (d Destination) IsServiceOrIndex() bool {
	return d.Type == TypeService || d.Type == TypeIndex
}

// Equal reports whether two destinations pay the identical recipient: same
// type and same underlying bytes. Gateway IDs and aux lists are not
// compared — they describe the routing, not the recipient's identity.
func (d Destination) Equal(other Destination) bool {
	return d.Type == other.Type && bytes.Equal(d.Bytes, other.Bytes)
}

// EqualOrAux reports fee-recipient equivalence per spec.md §4.E step 4:
// "either direct destination equality or auxiliary-destination equality
// (for cross-type addressing)". The check is symmetric: either side may be
// the exporter committed by the export and the other the claimed recipient.
func (d Destination) EqualOrAux(other Destination) bool {
	if d.Equal(other) {
		return true
	}
	for _, aux := range other.Aux {
		if d.Equal(aux) {
			return true
		}
	}
	for _, aux := range d.Aux {
		if aux.Equal(other) {
			return true
		}
	}
	return false
}

// WithAux returns a copy of d carrying up to MaxAuxDestinations auxiliary
// fallback destinations. Extra entries beyond the limit are rejected rather
// than silently dropped, so a caller never believes more aux destinations
// were recorded than actually were.
func (d Destination) WithAux(aux []Destination) (Destination, error) {
	if len(aux) > MaxAuxDestinations {
		return Destination{}, fmt.Errorf("destination: %d auxiliary destinations exceeds max %d", len(aux), MaxAuxDestinations)
	}
	out := d
	out.Aux = append([]Destination(nil), aux...)
	return out, nil
}

// String renders a short debug form, e.g. "pubkeyhash:ab12cd34".
func (d Destination) String() string {
	return fmt.Sprintf("%s:%x", d.Type, d.Bytes)
}
