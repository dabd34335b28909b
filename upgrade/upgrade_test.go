package upgrade

import (
	"testing"

	"github.com/pbaaschain/pbaasd/internal/chainhash"
)

func TestIsActiveByHeight(t *testing.T) {
	g := NewGate(1)
	g.SetUpgrade(Upgrade{Key: KeyDeFi, MinDaemonVersion: 1, ActivationHeight: 100})

	if g.IsActive(KeyDeFi, 99, 0) {
		t.Error("should not be active before ActivationHeight")
	}
	if !g.IsActive(KeyDeFi, 100, 0) {
		t.Error("should be active at ActivationHeight")
	}
	if !g.IsActive(KeyDeFi, 1000, 0) {
		t.Error("should remain active past ActivationHeight")
	}
}

func TestIsActiveByTargetTime(t *testing.T) {
	g := NewGate(1)
	g.SetUpgrade(Upgrade{Key: KeyDeFi, MinDaemonVersion: 1, ActivationHeight: 100, ActivationTargetTime: 5000})

	if g.IsActive(KeyDeFi, 100, 4999) {
		t.Error("height alone should not satisfy a target-time-gated upgrade")
	}
	if !g.IsActive(KeyDeFi, 100, 5000) {
		t.Error("should be active once both height and target time are reached")
	}
}

func TestIsActiveUnknownKey(t *testing.T) {
	g := NewGate(1)
	if g.IsActive(Key("nonexistent"), 1000000, 1000000) {
		t.Error("an unset key should never be active")
	}
}

func TestGracefulStopHeightSetOnVersionMismatch(t *testing.T) {
	g := NewGate(1)
	if _, ok := g.GracefulStopHeight(); ok {
		t.Fatal("a fresh gate should have no graceful stop height")
	}
	g.SetUpgrade(Upgrade{Key: KeyDeFi, MinDaemonVersion: 2, ActivationHeight: 500})
	height, ok := g.GracefulStopHeight()
	if !ok || height != 500 {
		t.Fatalf("GracefulStopHeight() = (%d, %v), want (500, true)", height, ok)
	}
}

func TestGracefulStopHeightDoesNotMoveOnceSet(t *testing.T) {
	g := NewGate(1)
	g.SetUpgrade(Upgrade{Key: KeyDeFi, MinDaemonVersion: 2, ActivationHeight: 500})
	g.SetUpgrade(Upgrade{Key: KeyPBaaSCrossChain, MinDaemonVersion: 3, ActivationHeight: 200})

	height, ok := g.GracefulStopHeight()
	if !ok || height != 500 {
		t.Fatalf("GracefulStopHeight() = (%d, %v), want the first-set height 500", height, ok)
	}
}

func TestGracefulStopHeightNotSetForSatisfiedVersion(t *testing.T) {
	g := NewGate(5)
	g.SetUpgrade(Upgrade{Key: KeyDeFi, MinDaemonVersion: 2, ActivationHeight: 500})
	if _, ok := g.GracefulStopHeight(); ok {
		t.Error("no graceful stop should be set when the running version already satisfies MinDaemonVersion")
	}
}

func TestDisableDeFiWaterfalls(t *testing.T) {
	g := NewGate(1)
	if g.DeFiDisabled() || g.PBaaSCrossChainDisabled() || g.GatewayCrossChainDisabled() {
		t.Fatal("a fresh gate should have nothing disabled")
	}
	g.SetDisableDeFi(true)
	if !g.DeFiDisabled() {
		t.Error("DeFiDisabled should report true once set")
	}
	if !g.PBaaSCrossChainDisabled() {
		t.Error("disabling DeFi should waterfall into PBaaS cross-chain")
	}
	if !g.GatewayCrossChainDisabled() {
		t.Error("disabling DeFi should waterfall into gateway cross-chain")
	}
}

func TestCrossChainDisabledForChoosesWaterfall(t *testing.T) {
	g := NewGate(1)
	g.SetDisablePBaaSCrossChain(true)

	var destSystem chainhash.ID
	if !g.CrossChainDisabledFor(destSystem, true) {
		t.Error("PBaaS destination should consult the PBaaS waterfall")
	}
	if g.CrossChainDisabledFor(destSystem, false) {
		t.Error("gateway destination should not be disabled by the PBaaS-only flag")
	}
}
