package chainclient

import (
	"errors"
	"testing"
)

func TestIsGameTooOldToStart(t *testing.T) {
	cases := []struct {
		commit, current uint64
		want            bool
	}{
		{100, 100, false},
		{100, 340, false},
		{100, 341, true},
		{100, 50, false}, // current behind commit: not stale, just not yet mined
	}
	for _, c := range cases {
		if got := IsGameTooOldToStart(c.commit, c.current); got != c.want {
			t.Errorf("IsGameTooOldToStart(%d, %d) = %v, want %v", c.commit, c.current, got, c.want)
		}
	}
}

func TestTranslateCallError(t *testing.T) {
	cases := map[string]error{
		"execution reverted: insufficient funds for stake": ErrInsufficientFunds,
		"caller is not the gamemaster":                     ErrNotAuthorized,
		"block not ready yet":                               ErrBlockNotReady,
		"blockhash unavailable for this block":              ErrBlockHashUnavailable,
	}
	for msg, want := range cases {
		got := translateCallError(errors.New(msg))
		if !errors.Is(got, want) {
			t.Errorf("translateCallError(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestTranslateCallErrorFallsBackToReverted(t *testing.T) {
	err := translateCallError(errors.New("execution reverted: custom game error"))
	var revErr *RevertedError
	if !errors.As(err, &revErr) {
		t.Fatalf("expected *RevertedError, got %T: %v", err, err)
	}
}
