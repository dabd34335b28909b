package engine

import (
	"time"

	"github.com/pbaaschain/pbaasd/currency"
	"github.com/pbaaschain/pbaasd/exportregistry"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/logger"
	"github.com/pbaaschain/pbaasd/reservedeposit"
	"github.com/pbaaschain/pbaasd/upgrade"
	"github.com/pbaaschain/pbaasd/util/panics"
	"github.com/pkg/errors"
)

var log, _ = logger.Get(logger.SubsystemTags.ENGN)
var spawn = panics.GoroutineWrapperFunc(log)

// milliSleep is the timeout-bounded idle wait the submission worker falls
// back to when no suspension-point signal is pending (spec.md §5).
const milliSleep = 500 * time.Millisecond

// ExportDriver and ImportDriver are the per-pair passes the submission
// worker runs every wake-up; they're supplied by the RPC/chain-integration
// layer (outside this package's scope) and wrap export.Plan / importer.Run
// with the concrete pending-transfer and UTXO-spend lookups those need.
type ExportDriver func() error
type ImportDriver func() error

// Engine is one node's instance of the bridge: the oracle gate, the
// currency-export registry, the reserve-deposit escrow store, and the
// cooperative submission worker that drives export aggregation,
// cross-system proof submission, and merge-mining candidate relay (spec.md
// §2, §5).
type Engine struct {
	cfg      Config
	Gate     *upgrade.Gate
	Registry *exportregistry.Registry
	Deposits *reservedeposit.Store

	exportDrivers []ExportDriver
	importDrivers []ImportDriver

	newBlock              chan struct{}
	newMergeMinedChain    chan struct{}
	newEarnedNotarization chan struct{}
	quit                  chan struct{}
	done                  chan struct{}

	gracefulStopHeight    uint64
	hasGracefulStopHeight bool
}

// New opens the engine's persistent state (the reserve-deposit escrow
// store) and constructs an Engine ready to Start.
func New(cfg Config) (*Engine, error) {
	deposits, err := reservedeposit.Open(cfg.DataDir + "/reservedeposits")
	if err != nil {
		return nil, errors.Wrap(err, "engine: opening reserve-deposit store")
	}
	return &Engine{
		cfg:                   cfg,
		Gate:                  upgrade.NewGate(cfg.DaemonVersion),
		Registry:              exportregistry.New(),
		Deposits:              deposits,
		newBlock:              make(chan struct{}, 1),
		newMergeMinedChain:    make(chan struct{}, 1),
		newEarnedNotarization: make(chan struct{}, 1),
		quit:                  make(chan struct{}),
		done:                  make(chan struct{}),
	}, nil
}

// RegisterExportDriver adds a (sourceSystem, destCurrency) export pass the
// worker runs on every wake-up. Called during daemon wiring, before Start.
func (e *Engine) RegisterExportDriver(d ExportDriver) {
	e.exportDrivers = append(e.exportDrivers, d)
}

// RegisterImportDriver adds an import pass the worker runs on every
// wake-up.
func (e *Engine) RegisterImportDriver(d ImportDriver) {
	e.importDrivers = append(e.importDrivers, d)
}

// NotifyNewBlock is the suspension-point signal for (a): a new block
// received (spec.md §5).
func (e *Engine) NotifyNewBlock() { notify(e.newBlock) }

// NotifyNewMergeMinedChain is suspension-point signal (b): a new
// merge-mined chain registered.
func (e *Engine) NotifyNewMergeMinedChain() { notify(e.newMergeMinedChain) }

// NotifyNewEarnedNotarization is suspension-point signal (c): a new earned
// notarization queued.
func (e *Engine) NotifyNewEarnedNotarization() { notify(e.newEarnedNotarization) }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Start launches the single cooperative submission worker (spec.md §5: "a
// single cooperative submission worker per node coordinates three recurring
// activities: export aggregation, cross-system proof submission, and
// merge-mining candidate relay").
func (e *Engine) Start() {
	spawn(e.submissionWorker)
}

// Stop cancels the submission worker on an interruption signal, draining
// its current operation atomically before returning (spec.md §5
// "Cancellation").
func (e *Engine) Stop() {
	close(e.quit)
	<-e.done
}

func (e *Engine) submissionWorker() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			log.Infof("submission worker: draining current pass before exit")
			return
		case <-e.newBlock:
			e.runPasses()
		case <-e.newMergeMinedChain:
			e.runPasses()
		case <-e.newEarnedNotarization:
			e.runPasses()
		case <-time.After(milliSleep):
			e.runPasses()
		}
	}
}

func (e *Engine) runPasses() {
	if height, ok := e.Gate.GracefulStopHeight(); ok {
		e.gracefulStopHeight = height
		e.hasGracefulStopHeight = true
	}
	if e.hasGracefulStopHeight {
		log.Warnf("submission worker: graceful stop height %d reached; suspending new records", e.gracefulStopHeight)
		return
	}

	for _, d := range e.exportDrivers {
		if err := d(); err != nil {
			log.Errorf("export pass failed: %+v", err)
		}
	}
	for _, d := range e.importDrivers {
		if err := d(); err != nil {
			log.Errorf("import pass failed: %+v", err)
		}
	}
}

// Close releases the engine's persistent state. Callers must Stop before
// Close.
func (e *Engine) Close() error {
	return e.Deposits.Close()
}

// CurrencyDefinition looks up a tracked currency by ID.
func (e *Engine) CurrencyDefinition(id chainhash.ID) (*currency.Definition, bool) {
	d, ok := e.cfg.Currencies[id]
	return d, ok
}
