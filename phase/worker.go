package phase

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"time"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/commitreveal"
	"github.com/tolelom/gamemaster/config"
	"github.com/tolelom/gamemaster/events"
	"github.com/tolelom/gamemaster/session"
)

// ServerCloseDelay is how long a COMPLETE game's listener stays up after
// reveal, to let any in-flight clients finish (spec §4.7).
const ServerCloseDelay = 15 * time.Second

// SessionHandle is the narrow slice of session.Session the state machine
// needs to observe, without owning the session itself.
type SessionHandle interface {
	AllFinished() bool
	Players() []session.Player
}

// ServerManager is the active-server registry, exclusively owned by the
// orchestrator (spec §3). The phase package only asks it to start, stop,
// and report on a game's listener.
type ServerManager interface {
	Start(ctx context.Context, gameID uint64, sess *session.Session, contract, secret string, players func() []string, port int, tlsConfig *tls.Config) error
	Stop(gameID uint64) error
	IsActive(gameID uint64) bool
	Session(gameID uint64) (SessionHandle, bool)
}

// Worker drives one game's per-tick action. It is stateless across games;
// all per-game state lives in the Game passed to Tick.
type Worker struct {
	Chain     chainclient.Client
	Pipeline  *commitreveal.Pipeline
	Artifacts artifact.Store
	Events    *events.Emitter
	Servers   ServerManager
	Config    *config.Config
}

// Tick re-derives g's phase from chain truth and the server registry, runs
// that phase's action, and reports whether g has reached a terminal state
// the orchestrator should remove from its registry.
func (w *Worker) Tick(ctx context.Context, g *Game) (done bool, err error) {
	if g.Expired {
		if g.Phase != Complete {
			w.Events.Emit(events.Event{
				Type:   events.EventGameExpired,
				GameID: g.GameID,
				Data:   map[string]any{"reason": g.ExpiredReason},
			})
		}
		g.Phase = Complete
		return w.runComplete(ctx, g)
	}

	derived, err := w.deriveState(ctx, g)
	if err != nil {
		return false, fmt.Errorf("phase: derive state for game %d: %w", g.GameID, err)
	}
	next := ApplyLocalPins(DerivePhase(derived), g.PayoutSkipped, g.RevealSkipped)
	if next != g.Phase {
		w.Events.Emit(events.Event{
			Type:   events.EventPhaseTransition,
			GameID: g.GameID,
			Data:   map[string]any{"from": string(g.Phase), "to": string(next)},
		})
		log.Printf("[phase] game %d: %s -> %s", g.GameID, g.Phase, next)
		g.Phase = next
	}
	g.LastUpdated = time.Now()
	g.PlayerCount = derived.playerCount
	g.MapSize = derived.mapSize

	if err := dispatch(ctx, w, g); err != nil {
		return false, err
	}
	if g.Phase == Complete {
		return w.runComplete(ctx, g)
	}
	return false, nil
}

// internalDerived carries a couple of chain-read fields alongside
// DerivedState purely for Worker bookkeeping (player count, map size);
// DerivePhase itself only looks at DerivedState's boolean fields.
type internalDerived struct {
	DerivedState
	playerCount int
	mapSize     int
}

func (w *Worker) deriveState(ctx context.Context, g *Game) (internalDerived, error) {
	info, err := w.Chain.GetGameInfo(ctx, g.GameID)
	if err != nil {
		return internalDerived{}, fmt.Errorf("getGameInfo: %w", err)
	}
	crState, err := w.Chain.GetCommitRevealState(ctx, g.GameID)
	if err != nil {
		return internalDerived{}, fmt.Errorf("getCommitRevealState: %w", err)
	}
	payout, err := w.Chain.GetPayoutInfo(ctx, g.GameID)
	if err != nil {
		return internalDerived{}, fmt.Errorf("getPayoutInfo: %w", err)
	}

	scoresExist := w.Artifacts.HasScores(g.GameID)
	allFinished := false
	thisServerActive := w.Servers.IsActive(g.GameID)
	if thisServerActive {
		if sess, ok := w.Servers.Session(g.GameID); ok {
			allFinished = sess.AllFinished()
		}
	}

	return internalDerived{
		DerivedState: DerivedState{
			HasOpened:          info.HasOpened,
			HasClosed:          info.HasClosed,
			HasCommitted:       crState.HasCommitted,
			HasStoredBlockHash: crState.HasStoredBlockHash,
			HasRevealed:        crState.HasRevealed,
			HasPaidOut:         payout.HasPaidOut,
			ScoresExist:        scoresExist,
			AllPlayersFinished: allFinished,
			ThisServerActive:   thisServerActive,
		},
		playerCount: info.PlayerCount,
		mapSize:     crState.MapSize,
	}, nil
}

func (w *Worker) runComplete(ctx context.Context, g *Game) (bool, error) {
	if err := dispatch(ctx, w, g); err != nil {
		return false, err
	}
	if w.Servers.IsActive(g.GameID) {
		return false, nil
	}
	return true, nil
}

func gamePort(gameID uint64) int {
	return 8000 + int(gameID)
}
