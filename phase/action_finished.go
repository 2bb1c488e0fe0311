package phase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
)

func init() {
	Register(GameFinished, actGameFinished)
}

const (
	maxPayoutRetries       = 10
	payoutBackoffUnit      = 5 * time.Second
	payoutBackoffCap       = 5 * time.Minute
	payoutInsufficientUnit = 10 * time.Second
	payoutInsufficientCap  = 10 * time.Minute
)

// actGameFinished performs spec §4.7's GAME_FINISHED action: pay out the
// winners. Failures are retried up to maxPayoutRetries with exponential
// backoff; exhaustion sets PayoutSkipped so the game can still reach
// COMPLETE. InsufficientFunds uses a longer, separately-tracked backoff and
// logs the shortfall so an operator can top up the gamemaster account.
func actGameFinished(ctx context.Context, w *Worker, g *Game) error {
	now := time.Now()
	if now.Before(g.PayoutNextRetryAt) {
		return nil
	}

	scores, err := w.Artifacts.LoadScores(g.GameID)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	winners := topScorers(scores)

	_, err = w.Chain.Payout(ctx, g.GameID, winners)
	if err == nil {
		g.PayoutRetryCount = 0
		g.PayoutNextRetryAt = time.Time{}
		return nil
	}

	if errors.Is(err, chainclient.ErrInsufficientFunds) {
		g.PayoutInsufficientLast = true
		g.PayoutRetryCount++
		if g.PayoutRetryCount >= maxPayoutRetries {
			log.Printf("[phase] game %d: payout exhausted %d retries, insufficient funds, skipping", g.GameID, g.PayoutRetryCount)
			g.PayoutSkipped = true
			return nil
		}
		g.PayoutNextRetryAt = now.Add(backoff(payoutInsufficientUnit, payoutInsufficientCap, g.PayoutRetryCount, true))
		log.Printf("[phase] game %d: payout failed, insufficient funds; retry %d scheduled for %s",
			g.GameID, g.PayoutRetryCount, g.PayoutNextRetryAt)
		return nil
	}

	g.PayoutInsufficientLast = false
	g.PayoutRetryCount++
	if g.PayoutRetryCount >= maxPayoutRetries {
		log.Printf("[phase] game %d: payout exhausted %d retries, skipping: %v", g.GameID, g.PayoutRetryCount, err)
		g.PayoutSkipped = true
		return nil
	}
	g.PayoutNextRetryAt = now.Add(backoff(payoutBackoffUnit, payoutBackoffCap, g.PayoutRetryCount, false))
	return nil
}

// backoff computes min(unit*2^n, cap). The generic retry uses exponent
// n-1 (so the first retry is immediate-ish); the insufficient-funds retry
// uses exponent n, per spec §4.7.
func backoff(unit, ceiling time.Duration, n int, insufficientFunds bool) time.Duration {
	exp := n - 1
	if insufficientFunds {
		exp = n
	}
	if exp < 0 {
		exp = 0
	}
	d := unit
	for i := 0; i < exp && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

// topScorers returns every player address tied for the highest recorded
// score. Ties split the payout list rather than picking an arbitrary
// winner (spec's PayoutInfo.Winners is a list, not a single address).
func topScorers(scores artifact.ScoresArtifact) []string {
	if len(scores.Players) == 0 {
		return nil
	}
	best := scores.Players[0].Score
	for _, p := range scores.Players[1:] {
		if p.Score > best {
			best = p.Score
		}
	}
	var winners []string
	for _, p := range scores.Players {
		if p.Score == best {
			winners = append(winners, p.Address)
		}
	}
	return winners
}
