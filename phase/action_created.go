package phase

import "context"

func init() {
	Register(Created, actCreated)
}

// actCreated performs spec §4.4 steps 1-2: generate a secret and commit
// its hash. commitreveal.GenerateAndCommit is already idempotent, so this
// action is safe to re-run every tick until the chain reports hasCommitted.
func actCreated(ctx context.Context, w *Worker, g *Game) error {
	return w.Pipeline.GenerateAndCommit(ctx, g.GameID)
}
