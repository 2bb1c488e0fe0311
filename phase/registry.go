package phase

import (
	"context"
	"fmt"
	"sync"
)

// Action is the per-state behavior a phase's handler performs (spec §4.7's
// "Per-state action" list): CREATED generates and commits, CLOSED builds
// the map and starts the server, and so on. Grounded on vm/registry.go's
// self-registering handler-registry pattern.
type Action func(ctx context.Context, w *Worker, g *Game) error

// registry maps a Phase to the Action that runs while a game sits in it.
type registry struct {
	mu       sync.RWMutex
	handlers map[Phase]Action
}

var globalRegistry = &registry{handlers: make(map[Phase]Action)}

// Register adds the action for phase to the global registry. Each action's
// file calls this from an init() function, mirroring vm.Register.
func Register(p Phase, a Action) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if _, exists := globalRegistry.handlers[p]; exists {
		panic(fmt.Sprintf("phase: action already registered for %q", p))
	}
	globalRegistry.handlers[p] = a
}

// dispatch runs the registered action for g.Phase.
func dispatch(ctx context.Context, w *Worker, g *Game) error {
	globalRegistry.mu.RLock()
	a, ok := globalRegistry.handlers[g.Phase]
	globalRegistry.mu.RUnlock()
	if !ok {
		return fmt.Errorf("phase: no action registered for %q", g.Phase)
	}
	return a(ctx, w, g)
}
