// Package exportregistry implements component I: the append-only, per
// destination-system registry of currencies eligible for export (spec.md
// §4.I).
package exportregistry

import (
	"sync"

	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pkg/errors"
)

// Registry tracks, per destination system, the set of currencies that may
// be exported to it. Entries are only ever added, never removed (spec.md
// §4.I: "Lookups are append-only; no un-export").
type Registry struct {
	mtx     sync.RWMutex
	entries map[chainhash.ID]map[chainhash.ID]struct{}
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: map[chainhash.ID]map[chainhash.ID]struct{}{}}
}

// SeedBaseSet installs the base set of currencies always exportable to
// destSystemID (spec.md §4.I): the system itself, the local chain's native
// currency, the launch system's reserves (if def is multi-currency), and
// the gateway-converter basket and its own reserves.
func (r *Registry) SeedBaseSet(destSystemID, localNativeID chainhash.ID, def *currency.Definition, gatewayConverter *currency.Definition) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	set := r.entries[destSystemID]
	if set == nil {
		set = map[chainhash.ID]struct{}{}
		r.entries[destSystemID] = set
	}
	set[destSystemID] = struct{}{}
	set[localNativeID] = struct{}{}

	if def != nil && def.Options.Has(currency.OptionFractional) {
		for _, id := range def.Currencies {
			set[id] = struct{}{}
		}
	}
	if gatewayConverter != nil {
		set[gatewayConverter.ID] = struct{}{}
		for _, id := range gatewayConverter.Currencies {
			set[id] = struct{}{}
		}
	}
}

// RecordCurrencyExport extends destSystemID's exportable set with
// currencyID, per an observed indexable currency-export reserve transfer
// (spec.md §4.I: "any currency that has been exported before"). Idempotent:
// re-recording an already-exported currency is not an error.
func (r *Registry) RecordCurrencyExport(destSystemID, currencyID chainhash.ID) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	set := r.entries[destSystemID]
	if set == nil {
		set = map[chainhash.ID]struct{}{}
		r.entries[destSystemID] = set
	}
	set[currencyID] = struct{}{}
}

// IsExportable reports whether currencyID may currently be exported to
// destSystemID.
func (r *Registry) IsExportable(destSystemID, currencyID chainhash.ID) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	set, ok := r.entries[destSystemID]
	if !ok {
		return false
	}
	_, ok = set[currencyID]
	return ok
}

// RequireExportable is IsExportable plus a spec.md §7 ValidationFailure-shaped
// error on rejection, for call sites that need to fail the containing
// operation outright.
func (r *Registry) RequireExportable(destSystemID, currencyID chainhash.ID) error {
	if r.IsExportable(destSystemID, currencyID) {
		return nil
	}
	return errors.Errorf("exportregistry: currency %s is not registered for export to system %s", currencyID, destSystemID)
}

// ExportableSet returns a snapshot of every currency exportable to
// destSystemID.
func (r *Registry) ExportableSet(destSystemID chainhash.ID) []chainhash.ID {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	set := r.entries[destSystemID]
	out := make([]chainhash.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
