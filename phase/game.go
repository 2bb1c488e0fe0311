// Package phase drives one game through the seven-phase lifecycle in spec
// §4.7: CREATED → COMMITTED → CLOSED → GAME_RUNNING → GAME_FINISHED →
// PAYOUT_COMPLETE → COMPLETE, with a terminal expired branch from any
// state. Every tick re-reads chain truth and re-derives the phase rather
// than trusting a cached flag (spec §4.7's idempotency rule), mirroring
// core.Blockchain's tip-driven, re-derive-don't-cache style.
package phase

import "time"

// Phase is one state in the per-game lifecycle.
type Phase string

const (
	Created       Phase = "CREATED"
	Committed     Phase = "COMMITTED"
	Closed        Phase = "CLOSED"
	GameRunning   Phase = "GAME_RUNNING"
	GameFinished  Phase = "GAME_FINISHED"
	PayoutComplete Phase = "PAYOUT_COMPLETE"
	Complete      Phase = "COMPLETE"
)

// Game is the orchestrator's registry entry for one on-chain game. The
// orchestrator exclusively owns the registry these live in (spec §3); the
// phase package only mutates the entry it's handed each tick.
type Game struct {
	GameID      uint64
	Gamemaster  string
	Creator     string
	StakeAmount uint64

	Phase       Phase
	PlayerCount int
	MapSize     int
	LastUpdated time.Time

	PayoutSkipped bool
	RevealSkipped bool
	Expired       bool
	ExpiredReason string

	// CompletedAt records when COMPLETE was first reached, so the server
	// close can be delayed 15s per spec §4.7.
	CompletedAt time.Time

	// Retry/backoff bookkeeping. In-memory only: a restart re-derives
	// phase from chain truth and simply starts the backoff clock over.
	PayoutRetryCount      int
	PayoutNextRetryAt     time.Time
	PayoutInsufficientLast bool

	RevealRetryCount  int
	RevealNextRetryAt time.Time
}

// DerivedState is the chain-state snapshot the decision table in spec
// §4.7 consumes, alongside two locally-observed facts (scoresExist,
// thisServerActive) that can't be read from chain.
type DerivedState struct {
	HasOpened          bool
	HasClosed          bool
	HasCommitted        bool
	HasStoredBlockHash bool
	HasRevealed        bool
	HasPaidOut         bool

	ScoresExist       bool
	AllPlayersFinished bool
	ThisServerActive  bool
}

// DerivePhase implements the decision table from spec §4.7 exactly.
func DerivePhase(s DerivedState) Phase {
	switch {
	case s.HasRevealed:
		return Complete
	case s.HasPaidOut && !s.HasRevealed:
		return PayoutComplete
	case s.HasClosed && s.HasCommitted && s.HasStoredBlockHash && s.ScoresExist && s.AllPlayersFinished:
		return GameFinished
	case s.HasClosed && s.HasCommitted && s.HasStoredBlockHash && s.ThisServerActive:
		return GameRunning
	case s.HasClosed && s.HasCommitted && s.HasStoredBlockHash:
		return Closed
	case s.HasCommitted:
		return Committed
	default:
		return Created
	}
}

// ApplyLocalPins overrides the chain-derived phase with the locally-stored
// skip flags (spec §4.7: "payoutSkipped pins GAME_FINISHED → PAYOUT_COMPLETE;
// revealSkipped pins PAYOUT_COMPLETE → COMPLETE").
func ApplyLocalPins(derived Phase, payoutSkipped, revealSkipped bool) Phase {
	if derived == GameFinished && payoutSkipped {
		return PayoutComplete
	}
	if derived == PayoutComplete && revealSkipped {
		return Complete
	}
	return derived
}
