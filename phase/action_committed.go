package phase

import (
	"context"
	"errors"

	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/config"
)

func init() {
	Register(Committed, actCommitted)
}

// actCommitted performs spec §4.4 step 3: once the commit block has
// landed, publish the URL this game's server will listen on. BlockNotReady
// is expected while waiting and simply retried next tick;
// BlockHashUnavailable is fatal and expires the game.
func actCommitted(ctx context.Context, w *Worker, g *Game) error {
	tlsConfig, err := config.LoadServerTLSConfig()
	if err != nil {
		return err
	}
	serverURL := w.Config.ServerURL(gamePort(g.GameID), tlsConfig != nil)

	err = w.Pipeline.StoreBlockHash(ctx, g.GameID, serverURL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chainclient.ErrBlockNotReady):
		return nil // expected while waiting for the commit block to land
	case errors.Is(err, chainclient.ErrBlockHashUnavailable):
		expire(g, "commit block hash unavailable before it could be stored")
		return nil
	default:
		return err
	}
}
