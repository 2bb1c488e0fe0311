package orchestrator

import (
	"context"
	"testing"

	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/config"
	"github.com/tolelom/gamemaster/events"
	"github.com/tolelom/gamemaster/internal/testutil"
	"github.com/tolelom/gamemaster/orchestrator/discoverycache"
	"github.com/tolelom/gamemaster/phase"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *testutil.FakeChain) {
	t.Helper()
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	cache := discoverycache.New(testutil.NewMemDB())
	cfg := &config.Config{ContractAddress: "0x000000000000000000000000000000000000dEaD", JWTSecret: "s"}
	return New(chain, store, cache, events.NewEmitter(), cfg), chain
}

func TestDiscoverSeedsRegistryFromHistoricalScan(t *testing.T) {
	o, chain := newTestOrchestrator(t)
	chain.Games[1] = chainclient.GameInfo{}
	chain.Games[2] = chainclient.GameInfo{}
	chain.Block = 42

	if err := o.discover(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(o.games) != 2 {
		t.Fatalf("expected 2 games discovered, got %d", len(o.games))
	}

	height, ok, err := o.cache.LastScannedBlock()
	if err != nil || !ok || height != 42 {
		t.Fatalf("expected last scanned block persisted as 42, got %d ok=%v err=%v", height, ok, err)
	}
}

func TestDiscoverIsIdempotentAcrossRestarts(t *testing.T) {
	o, chain := newTestOrchestrator(t)
	chain.Games[1] = chainclient.GameInfo{}

	if err := o.discover(context.Background()); err != nil {
		t.Fatalf("first discover: %v", err)
	}

	o2, _ := newTestOrchestrator(t)
	o2.cache = o.cache // simulate restart reusing the same on-disk cache
	if err := o2.discover(context.Background()); err != nil {
		t.Fatalf("second discover: %v", err)
	}
	if len(o2.games) != 1 {
		t.Fatalf("expected the restarted orchestrator to rediscover exactly 1 game from the cache, got %d", len(o2.games))
	}
}

func TestOrderedGamesPutsRunningFirstThenAscending(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.games[3] = &phase.Game{GameID: 3, Phase: phase.Created}
	o.games[1] = &phase.Game{GameID: 1, Phase: phase.GameRunning}
	o.games[2] = &phase.Game{GameID: 2, Phase: phase.Created}

	ordered := o.orderedGames()
	if len(ordered) != 3 {
		t.Fatalf("expected 3 games, got %d", len(ordered))
	}
	if ordered[0].GameID != 1 {
		t.Fatalf("expected GAME_RUNNING game 1 first, got %d", ordered[0].GameID)
	}
	if ordered[1].GameID != 2 || ordered[2].GameID != 3 {
		t.Fatalf("expected remaining games ascending by id, got %d, %d", ordered[1].GameID, ordered[2].GameID)
	}
}

func TestTickAllRemovesDoneGames(t *testing.T) {
	o, chain := newTestOrchestrator(t)
	chain.States[1] = chainclient.CommitRevealState{HasRevealed: true}
	o.games[1] = &phase.Game{GameID: 1}

	// HasRevealed is already true, so DerivePhase reaches COMPLETE on the
	// very first tick, and with no active server runComplete reports done
	// immediately — no two-tick lag is needed here.
	o.tickAll(context.Background())
	if _, ok := o.games[1]; ok {
		t.Fatal("expected the completed game to be removed from the registry")
	}
}

func TestServerManagerLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.games[1] = &phase.Game{GameID: 1, Phase: phase.Closed}

	if o.IsActive(1) {
		t.Fatal("game should not be active before Start")
	}
	if _, ok := o.Session(1); ok {
		t.Fatal("Session should report not-found before Start")
	}

	if err := o.Stop(1); err != nil {
		t.Fatalf("Stop on an inactive game should be a no-op: %v", err)
	}
}

func TestRecordDiscoveryIgnoresNonCreatedEvents(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.recordDiscovery(chainclient.Event{Kind: chainclient.EventGameClosed, GameID: 9})
	if len(o.games) != 0 {
		t.Fatalf("expected non-GameCreated events to be ignored, got %d games", len(o.games))
	}
}
