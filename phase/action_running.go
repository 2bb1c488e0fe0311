package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/mapgen"
)

func init() {
	Register(GameRunning, actGameRunning)
}

// actGameRunning performs spec §4.7's GAME_RUNNING action: on every tick,
// check the session's end-of-game condition; once every player is
// finished, persist final scores. The phase transition to GAME_FINISHED
// happens on the *next* tick, driven by the now-present scores artifact
// (spec §4.7's decision table), not by this action directly.
func actGameRunning(ctx context.Context, w *Worker, g *Game) error {
	sess, ok := w.Servers.Session(g.GameID)
	if !ok {
		return nil
	}
	if !sess.AllFinished() {
		return nil
	}
	if w.Artifacts.HasScores(g.GameID) {
		return nil
	}

	players := sess.Players()
	scores := make([]artifact.PlayerScore, len(players))
	for i, p := range players {
		scores[i] = artifact.PlayerScore{
			Address:        p.Address,
			Position:       mapgen.Coord{X: p.Position.X, Y: p.Position.Y},
			Tile:           0,
			Score:          p.Score,
			MovesRemaining: p.MovesRemaining,
			MinesRemaining: p.MinesRemaining,
		}
	}
	sc := artifact.ScoresArtifact{
		GameID:  g.GameID,
		Players: scores,
		Count:   len(scores),
		SavedAt: time.Now().UTC(),
	}
	if err := w.Artifacts.SaveScores(g.GameID, sc); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}
