// Package orchestrator is the top-level driver described in spec §4.8: it
// discovers games, keeps the per-game registry and active-server map, and
// runs the 250ms main loop that advances every game's state machine. It is
// grounded on network/node.go's mutex-guarded peer map (the registry and
// active-server map reuse that exact locking shape) and consensus/poa.go's
// Run(interval, done)-style ticker loop, repurposed from block production
// to per-game phase ticking.
package orchestrator

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/commitreveal"
	"github.com/tolelom/gamemaster/config"
	"github.com/tolelom/gamemaster/events"
	"github.com/tolelom/gamemaster/gameserver"
	"github.com/tolelom/gamemaster/mapgen"
	"github.com/tolelom/gamemaster/orchestrator/discoverycache"
	"github.com/tolelom/gamemaster/phase"
	"github.com/tolelom/gamemaster/session"
)

// TickInterval is how often the main loop advances every registered game's
// state machine (spec §4.8 step 4).
const TickInterval = 250 * time.Millisecond

// TickErrorBackoff is a one-second pause length. Run has no loop-level error
// path and nothing waits on it: per-game tick errors are logged and skipped
// without a pause (see tickAll).
const TickErrorBackoff = time.Second

// activeServer bundles one game's live HTTP listener with the session it
// serves, so the orchestrator can snapshot and close it on demand.
type activeServer struct {
	srv  *gameserver.Server
	sess *session.Session
}

// Orchestrator owns the per-game registry and active-server map (spec §5:
// "no shared mutable state is permitted other than the registry and the
// active-server map"), and implements phase.ServerManager so the phase
// package can start/stop listeners without depending on this package.
type Orchestrator struct {
	mu      sync.RWMutex
	games   map[uint64]*phase.Game
	servers map[uint64]*activeServer

	chain     chainclient.Client
	artifacts artifact.Store
	cache     *discoverycache.Cache
	events    *events.Emitter
	cfg       *config.Config
	worker    *phase.Worker
}

// New wires a Worker over the given chain/artifact/event adapters and
// returns an Orchestrator ready for Run.
func New(chain chainclient.Client, artifacts artifact.Store, cache *discoverycache.Cache, emitter *events.Emitter, cfg *config.Config) *Orchestrator {
	o := &Orchestrator{
		games:     make(map[uint64]*phase.Game),
		servers:   make(map[uint64]*activeServer),
		chain:     chain,
		artifacts: artifacts,
		cache:     cache,
		events:    emitter,
		cfg:       cfg,
	}
	o.worker = &phase.Worker{
		Chain:     chain,
		Pipeline:  commitreveal.New(chain, artifacts),
		Artifacts: artifacts,
		Events:    emitter,
		Servers:   o,
		Config:    cfg,
	}
	return o
}

// Run executes the startup sequence (spec §4.8 steps 2-3) and then blocks in
// the main tick loop until ctx is cancelled, at which point it runs the
// shutdown sequence (spec §5: snapshot scores, close listeners, exit).
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.discover(ctx); err != nil {
		return fmt.Errorf("orchestrator: discovery: %w", err)
	}

	liveEvents, err := o.chain.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: subscribe: %w", err)
	}
	go o.watchEvents(ctx, liveEvents)

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.Shutdown()
			return nil
		case <-ticker.C:
			o.tickAll(ctx)
		}
	}
}

// discover seeds the registry from previously-recorded games (a restart
// needs no re-scan for those) and then scans on-chain history from the last
// recorded block forward, per spec §4.8 step 2.
func (o *Orchestrator) discover(ctx context.Context) error {
	known, err := o.cache.KnownGames()
	if err != nil {
		return fmt.Errorf("load known games: %w", err)
	}
	for _, id := range known {
		o.addGame(id)
	}

	fromBlock, _, err := o.cache.LastScannedBlock()
	if err != nil {
		return fmt.Errorf("load last scanned block: %w", err)
	}

	evs, err := o.chain.ScanHistorical(ctx, fromBlock)
	if err != nil {
		return fmt.Errorf("scan historical: %w", err)
	}
	for _, ev := range evs {
		o.recordDiscovery(ev)
	}

	current, err := o.chain.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("current block: %w", err)
	}
	if err := o.cache.SetLastScannedBlock(current); err != nil {
		log.Printf("[orchestrator] persist last scanned block: %v", err)
	}
	return nil
}

// watchEvents applies newly-created games from the live subscription (spec
// §4.8 step 3) until ctx is cancelled or the channel closes.
func (o *Orchestrator) watchEvents(ctx context.Context, ch <-chan chainclient.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			o.recordDiscovery(ev)
		}
	}
}

func (o *Orchestrator) recordDiscovery(ev chainclient.Event) {
	if ev.Kind != chainclient.EventGameCreated {
		return
	}
	if o.addGame(ev.GameID) {
		if err := o.cache.AddGame(ev.GameID); err != nil {
			log.Printf("[orchestrator] persist discovered game %d: %v", ev.GameID, err)
		}
	}
}

// addGame registers gameID if not already known, emitting EventGameDiscovered.
// Reports whether the game was newly added.
func (o *Orchestrator) addGame(gameID uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.games[gameID]; ok {
		return false
	}
	o.games[gameID] = &phase.Game{GameID: gameID, Phase: phase.Created}
	o.events.Emit(events.Event{Type: events.EventGameDiscovered, GameID: gameID})
	return true
}

func (o *Orchestrator) removeGame(gameID uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.games, gameID)
}

// orderedGames returns a snapshot of the registry ordered GAME_RUNNING
// first, then ascending gameId (spec §4.8 step 4).
func (o *Orchestrator) orderedGames() []*phase.Game {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*phase.Game, 0, len(o.games))
	for _, g := range o.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		iRunning := out[i].Phase == phase.GameRunning
		jRunning := out[j].Phase == phase.GameRunning
		if iRunning != jRunning {
			return iRunning
		}
		return out[i].GameID < out[j].GameID
	})
	return out
}

// tickAll advances every registered game by one phase.Worker.Tick, removing
// games that report themselves done. A per-game tick error is logged and
// skipped rather than aborting the whole pass.
func (o *Orchestrator) tickAll(ctx context.Context) {
	for _, g := range o.orderedGames() {
		done, err := o.worker.Tick(ctx, g)
		if err != nil {
			log.Printf("[orchestrator] game %d: tick error: %v", g.GameID, err)
			continue
		}
		if done {
			o.removeGame(g.GameID)
			log.Printf("[orchestrator] game %d: complete, removed from registry", g.GameID)
		}
	}
}

// Shutdown snapshots every active game's players, persists their scores,
// and closes every listener (spec §4.8, §5's SIGINT sequence). Safe to call
// even if no servers are active.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	servers := make(map[uint64]*activeServer, len(o.servers))
	for id, as := range o.servers {
		servers[id] = as
	}
	o.mu.Unlock()

	for gameID, as := range servers {
		if err := o.snapshotScores(gameID, as.sess); err != nil {
			log.Printf("[orchestrator] game %d: snapshot scores on shutdown: %v", gameID, err)
		}
		if err := as.srv.Close(); err != nil {
			log.Printf("[orchestrator] game %d: close listener on shutdown: %v", gameID, err)
		}
		o.events.Emit(events.Event{Type: events.EventServerStopped, GameID: gameID})
	}
}

func (o *Orchestrator) snapshotScores(gameID uint64, sess *session.Session) error {
	players := sess.Players()
	scores := make([]artifact.PlayerScore, len(players))
	for i, p := range players {
		scores[i] = artifact.PlayerScore{
			Address:        p.Address,
			Position:       mapgen.Coord{X: p.Position.X, Y: p.Position.Y},
			Score:          p.Score,
			MovesRemaining: p.MovesRemaining,
			MinesRemaining: p.MinesRemaining,
		}
	}
	sc := artifact.ScoresArtifact{
		GameID:  gameID,
		Players: scores,
		Count:   len(scores),
		SavedAt: time.Now().UTC(),
	}
	return o.artifacts.SaveScores(gameID, sc)
}

// Start implements phase.ServerManager: it builds and binds a gameserver.Server
// for gameID, publishing its status from this Orchestrator's own registry
// entry rather than letting gameserver own phase/start-time state.
func (o *Orchestrator) Start(ctx context.Context, gameID uint64, sess *session.Session, contract, secret string, players func() []string, port int, tlsConfig *tls.Config) error {
	o.mu.Lock()
	if _, ok := o.servers[gameID]; ok {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	startedAt := time.Now()
	status := func() gameserver.Status {
		o.mu.RLock()
		g := o.games[gameID]
		o.mu.RUnlock()
		phaseStr := ""
		if g != nil {
			phaseStr = string(g.Phase)
		}
		return gameserver.Status{Phase: phaseStr, StartedAt: startedAt}
	}

	srv := gameserver.New(gameID, contract, secret, sess, status, players)
	if err := srv.Listen(port, tlsConfig); err != nil {
		return fmt.Errorf("orchestrator: start listener for game %d: %w", gameID, err)
	}
	sess.Arm(time.Now())

	o.mu.Lock()
	o.servers[gameID] = &activeServer{srv: srv, sess: sess}
	o.mu.Unlock()
	return nil
}

// Stop implements phase.ServerManager: it removes gameID from the
// active-server map and closes its listener. A missing gameID is a no-op —
// the 15s delayed close re-checks IsActive itself (spec §5's "if replaced,
// skip" note).
func (o *Orchestrator) Stop(gameID uint64) error {
	o.mu.Lock()
	as, ok := o.servers[gameID]
	if ok {
		delete(o.servers, gameID)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}
	return as.srv.Close()
}

// IsActive implements phase.ServerManager.
func (o *Orchestrator) IsActive(gameID uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.servers[gameID]
	return ok
}

// Session implements phase.ServerManager. session.Session already exposes
// AllFinished/Players with the exact signatures phase.SessionHandle wants,
// so no adapter type is needed here.
func (o *Orchestrator) Session(gameID uint64) (phase.SessionHandle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	as, ok := o.servers[gameID]
	if !ok {
		return nil, false
	}
	return as.sess, true
}
