package commitreveal

import (
	"context"
	"errors"
	"testing"

	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/internal/testutil"
)

func TestGenerateAndCommitFreshGame(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	p := New(chain, store)
	ctx := context.Background()

	if err := p.GenerateAndCommit(ctx, 1); err != nil {
		t.Fatalf("GenerateAndCommit: %v", err)
	}
	if _, err := store.LoadReveal(1); err != nil {
		t.Fatalf("expected secret persisted: %v", err)
	}
	if !chain.States[1].HasCommitted {
		t.Fatal("expected chain to record commit")
	}
}

func TestGenerateAndCommitIdempotent(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	p := New(chain, store)
	ctx := context.Background()

	if err := p.GenerateAndCommit(ctx, 1); err != nil {
		t.Fatalf("first call: %v", err)
	}
	secret, _ := store.LoadReveal(1)
	committed := chain.Commits[1]

	if err := p.GenerateAndCommit(ctx, 1); err != nil {
		t.Fatalf("second call: %v", err)
	}
	secret2, _ := store.LoadReveal(1)
	if secret != secret2 {
		t.Fatal("secret changed on re-entry")
	}
	if committed != chain.Commits[1] {
		t.Fatal("commit hash changed on re-entry")
	}
}

func TestStoreBlockHashNotReady(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	chain.States[1] = chainclient.CommitRevealState{CommitBlockNumber: 100}
	chain.Block = 50
	p := New(chain, store)

	err := p.StoreBlockHash(context.Background(), 1, "http://localhost:8001")
	if !errors.Is(err, chainclient.ErrBlockNotReady) {
		t.Fatalf("expected ErrBlockNotReady, got %v", err)
	}
}

func TestStoreBlockHashReady(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	chain.States[1] = chainclient.CommitRevealState{CommitBlockNumber: 100}
	chain.Block = 150
	p := New(chain, store)

	if err := p.StoreBlockHash(context.Background(), 1, "http://localhost:8001"); err != nil {
		t.Fatalf("StoreBlockHash: %v", err)
	}
	if chain.StoredURLs[1] != "http://localhost:8001" {
		t.Fatalf("unexpected stored url: %q", chain.StoredURLs[1])
	}
}

func TestRandomHashPropagatesBlockHashUnavailable(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	store.SaveReveal(1, [32]byte{1, 2, 3})
	p := New(chain, store)

	_, err := p.RandomHash(context.Background(), 1)
	if !errors.Is(err, chainclient.ErrBlockHashUnavailable) {
		t.Fatalf("expected ErrBlockHashUnavailable, got %v", err)
	}
}

func TestRandomHashDeterministic(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	secret := [32]byte{9, 9, 9}
	store.SaveReveal(1, secret)
	chain.Hashes[1] = [32]byte{5, 5, 5}
	p := New(chain, store)

	h1, err := p.RandomHash(context.Background(), 1)
	if err != nil {
		t.Fatalf("RandomHash: %v", err)
	}
	h2, err := p.RandomHash(context.Background(), 1)
	if err != nil {
		t.Fatalf("RandomHash (2nd): %v", err)
	}
	if h1 != h2 {
		t.Fatal("random hash not deterministic across calls")
	}
}

func TestIsGameTooOldToStart(t *testing.T) {
	chain := testutil.NewFakeChain()
	store := testutil.NewMemArtifactStore()
	chain.States[1] = chainclient.CommitRevealState{CommitBlockNumber: 100}
	chain.Block = 500
	p := New(chain, store)

	old, err := p.IsGameTooOldToStart(context.Background(), 1)
	if err != nil {
		t.Fatalf("IsGameTooOldToStart: %v", err)
	}
	if !old {
		t.Fatal("expected game to be reported as too old to start")
	}
}
