// Package commitreveal drives the four-step commit-reveal sequence each
// game goes through (spec §4.4): generate a secret, commit its hash, wait
// for the commit block to land and publish a reference to it, and finally
// reveal the secret once payout has completed. It is grounded on the
// teacher's core package's step-wise, explicitly-erroring style rather than
// a single do-everything call, so the per-game state machine (phase
// package) can drive each step independently and retry only the step that
// failed.
package commitreveal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
	gmcrypto "github.com/tolelom/gamemaster/crypto"
)

// Pipeline bundles the chain adapter and artifact store the four steps
// need. It carries no per-game state of its own; everything durable lives
// in the artifact store, everything ephemeral is re-derived from the chain
// on every call (spec §4.7's idempotency rule: "every state re-entry first
// re-reads chain truth").
type Pipeline struct {
	chain chainclient.Client
	store artifact.Store
}

// New builds a Pipeline over the given chain adapter and artifact store.
func New(chain chainclient.Client, store artifact.Store) *Pipeline {
	return &Pipeline{chain: chain, store: store}
}

// GenerateAndCommit performs steps 1-2. It is idempotent: if a secret has
// already been persisted for gameID, generation is skipped; if the chain
// already reports hasCommitted, the commit submission is skipped.
func (p *Pipeline) GenerateAndCommit(ctx context.Context, gameID uint64) error {
	secret, err := p.store.LoadReveal(gameID)
	if errors.Is(err, artifact.ErrNotFound) {
		secret, err = generateSecret()
		if err != nil {
			return fmt.Errorf("commitreveal: generate secret: %w", err)
		}
		if err := p.store.SaveReveal(gameID, secret); err != nil {
			return fmt.Errorf("commitreveal: persist secret: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("commitreveal: load secret: %w", err)
	}

	state, err := p.chain.GetCommitRevealState(ctx, gameID)
	if err != nil {
		return fmt.Errorf("commitreveal: read commit state: %w", err)
	}
	if state.HasCommitted {
		return nil
	}
	commitHash := gmcrypto.Keccak256(secret[:])
	var hash32 [32]byte
	copy(hash32[:], commitHash)
	if _, err := p.chain.CommitHash(ctx, gameID, hash32); err != nil {
		return fmt.Errorf("commitreveal: commitHash(%d): %w", gameID, err)
	}
	return nil
}

// StoreBlockHash performs step 3: once the commit transaction's block has
// landed, publish the server URL that hosts this game alongside a
// reference to that block's hash. chainclient.ErrBlockNotReady is expected
// while waiting and should be retried by the caller; ErrBlockHashUnavailable
// is fatal for this game.
func (p *Pipeline) StoreBlockHash(ctx context.Context, gameID uint64, serverURL string) error {
	state, err := p.chain.GetCommitRevealState(ctx, gameID)
	if err != nil {
		return fmt.Errorf("commitreveal: read commit state: %w", err)
	}
	if state.HasStoredBlockHash {
		return nil
	}
	current, err := p.chain.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("commitreveal: current block: %w", err)
	}
	if current < state.CommitBlockNumber {
		return chainclient.ErrBlockNotReady
	}
	if _, err := p.chain.StoreCommitBlockHash(ctx, gameID, serverURL); err != nil {
		return fmt.Errorf("commitreveal: storeCommitBlockHash(%d): %w", gameID, err)
	}
	return nil
}

// RandomHash recomputes keccak256(commitBlockHash ∥ secret), the seed the
// map generator consumes (spec §4.1, §4.4). It must be computed fresh from
// the chain's recorded commit block hash rather than trusted from a cache,
// since that hash is only available for a limited retention window.
func (p *Pipeline) RandomHash(ctx context.Context, gameID uint64) ([32]byte, error) {
	var out [32]byte
	secret, err := p.store.LoadReveal(gameID)
	if err != nil {
		return out, fmt.Errorf("commitreveal: load secret: %w", err)
	}
	blockHash, err := p.chain.GetCommitBlockHash(ctx, gameID)
	if err != nil {
		return out, err // preserves ErrBlockHashUnavailable for the caller
	}
	hash := gmcrypto.Keccak256(blockHash[:], secret[:])
	copy(out[:], hash)
	return out, nil
}

// Reveal performs step 4: a single reveal attempt. The phase package owns
// the retry-once-after-10s policy (spec §4.4); this method always reports
// the raw outcome of one attempt.
func (p *Pipeline) Reveal(ctx context.Context, gameID uint64) error {
	secret, err := p.store.LoadReveal(gameID)
	if err != nil {
		return fmt.Errorf("commitreveal: load secret: %w", err)
	}
	if _, err := p.chain.RevealHash(ctx, gameID, secret); err != nil {
		return fmt.Errorf("commitreveal: revealHash(%d): %w", gameID, err)
	}
	return nil
}

// IsGameTooOldToStart re-exports the chain adapter's freshness check so
// callers only need to import this package for the whole commit-reveal
// lifecycle.
func (p *Pipeline) IsGameTooOldToStart(ctx context.Context, gameID uint64) (bool, error) {
	state, err := p.chain.GetCommitRevealState(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("commitreveal: read commit state: %w", err)
	}
	current, err := p.chain.CurrentBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("commitreveal: current block: %w", err)
	}
	return chainclient.IsGameTooOldToStart(state.CommitBlockNumber, current), nil
}

func generateSecret() ([32]byte, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, err
	}
	return secret, nil
}
