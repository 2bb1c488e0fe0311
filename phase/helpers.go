package phase

import (
	"github.com/tolelom/gamemaster/auth"
	"github.com/tolelom/gamemaster/config"
)

// expire marks g as expired with reason, pinning the next Tick to jump
// straight to COMPLETE (spec §4.7's terminal expired branch).
func expire(g *Game, reason string) {
	g.Expired = true
	g.ExpiredReason = reason
}

// authSecret derives the per-contract bearer-token secret (spec §3).
func authSecret(cfg *config.Config) string {
	return auth.Secret(cfg.JWTSecret, cfg.ContractAddress)
}
