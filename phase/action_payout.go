package phase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tolelom/gamemaster/chainclient"
)

func init() {
	Register(PayoutComplete, actPayoutComplete)
}

const (
	maxRevealRetries  = 1
	revealRetryBackoff = 10 * time.Second
)

// actPayoutComplete performs spec §4.4 step 4 and §4.7's PAYOUT_COMPLETE
// action: reveal the secret. BlockHashUnavailable gets one retry after
// 10s; a second failure sets RevealSkipped so the game can still reach
// COMPLETE.
func actPayoutComplete(ctx context.Context, w *Worker, g *Game) error {
	now := time.Now()
	if now.Before(g.RevealNextRetryAt) {
		return nil
	}

	err := w.Pipeline.Reveal(ctx, g.GameID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, chainclient.ErrBlockHashUnavailable) {
		return err
	}

	g.RevealRetryCount++
	if g.RevealRetryCount > maxRevealRetries {
		log.Printf("[phase] game %d: reveal exhausted retries, skipping: %v", g.GameID, err)
		g.RevealSkipped = true
		return nil
	}
	g.RevealNextRetryAt = now.Add(revealRetryBackoff)
	return nil
}
