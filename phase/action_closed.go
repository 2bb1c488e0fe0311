package phase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/config"
	"github.com/tolelom/gamemaster/events"
	"github.com/tolelom/gamemaster/mapgen"
	"github.com/tolelom/gamemaster/session"
)

func init() {
	Register(Closed, actClosed)
}

// actClosed performs spec §4.7's CLOSED action: check the freshness
// invariant, generate the map from the on-chain commit block hash and the
// persisted reveal, persist it, and start this game's HTTP listener.
func actClosed(ctx context.Context, w *Worker, g *Game) error {
	tooOld, err := w.Pipeline.IsGameTooOldToStart(ctx, g.GameID)
	if err != nil {
		return err
	}
	if tooOld {
		expire(g, "commit block older than the stale-block threshold")
		return nil
	}

	randomHash, err := w.Pipeline.RandomHash(ctx, g.GameID)
	if err != nil {
		if errors.Is(err, chainclient.ErrBlockHashUnavailable) {
			expire(g, "commit block hash no longer available")
			return nil
		}
		return err
	}

	if w.Servers.IsActive(g.GameID) {
		return nil // already running; nothing more to do in CLOSED
	}

	players, err := w.Chain.GetPlayers(ctx, g.GameID)
	if err != nil {
		return fmt.Errorf("getPlayers: %w", err)
	}
	mapSize := g.MapSize
	if mapSize == 0 {
		mapSize = mapgen.Size(len(players))
	}

	reveal, err := w.Artifacts.LoadReveal(g.GameID)
	if err != nil {
		return fmt.Errorf("load reveal: %w", err)
	}

	m := mapgen.Generate(randomHash, mapSize)
	mapArt := artifact.MapArtifact{
		Size: m.Size,
		Land: artifact.FromMap(m),
		StartingPosition: artifact.StartingPositionRecord{
			X: m.StartingPosition.X, Y: m.StartingPosition.Y,
			OriginalLandType: m.StartingPosition.OriginalLandType,
		},
		Metadata: artifact.MapMetadata{
			Generated:   time.Now().UTC(),
			GameID:      g.GameID,
			RevealValue: fmt.Sprintf("0x%x", reveal),
			RandomHash:  fmt.Sprintf("0x%x", randomHash),
		},
	}
	if err := w.Artifacts.SaveMap(g.GameID, mapArt); err != nil {
		return fmt.Errorf("save map: %w", err)
	}

	sess := session.New(m, g.GameID, randomHash, players)

	tlsConfig, err := config.LoadServerTLSConfig()
	if err != nil {
		return err
	}
	secret := authSecret(w.Config)
	playersFunc := func() []string {
		current, err := w.Chain.GetPlayers(ctx, g.GameID)
		if err != nil {
			return players
		}
		return current
	}
	if err := w.Servers.Start(ctx, g.GameID, sess, w.Config.ContractAddress, secret, playersFunc, gamePort(g.GameID), tlsConfig); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	w.Events.Emit(events.Event{Type: events.EventServerStarted, GameID: g.GameID})
	return nil
}
