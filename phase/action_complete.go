package phase

import (
	"context"
	"time"

	"github.com/tolelom/gamemaster/events"
)

func init() {
	Register(Complete, actComplete)
}

// actComplete performs spec §4.7's COMPLETE action: schedule the game's
// HTTP listener to close ServerCloseDelay after reveal, checking at fire
// time that the active server is still this game's (spec §5's
// cancellation note: "if replaced, skip" — IsActive already scopes Stop to
// gameID, so a replaced listener is simply a no-op here).
func actComplete(ctx context.Context, w *Worker, g *Game) error {
	if !w.Servers.IsActive(g.GameID) {
		return nil
	}
	if g.CompletedAt.IsZero() {
		g.CompletedAt = time.Now()
		return nil
	}
	if time.Since(g.CompletedAt) < ServerCloseDelay {
		return nil
	}
	if err := w.Servers.Stop(g.GameID); err != nil {
		return err
	}
	w.Events.Emit(events.Event{Type: events.EventServerStopped, GameID: g.GameID})
	return nil
}
