package discoverycache

import (
	"testing"

	"github.com/tolelom/gamemaster/internal/testutil"
)

func TestLastScannedBlockRoundTrip(t *testing.T) {
	c := New(testutil.NewMemDB())
	if _, ok, err := c.LastScannedBlock(); err != nil || ok {
		t.Fatalf("expected no recorded block yet, ok=%v err=%v", ok, err)
	}
	if err := c.SetLastScannedBlock(12345); err != nil {
		t.Fatalf("SetLastScannedBlock: %v", err)
	}
	height, ok, err := c.LastScannedBlock()
	if err != nil || !ok {
		t.Fatalf("LastScannedBlock: ok=%v err=%v", ok, err)
	}
	if height != 12345 {
		t.Fatalf("height = %d, want 12345", height)
	}
}

func TestKnownGamesRoundTrip(t *testing.T) {
	c := New(testutil.NewMemDB())
	for _, id := range []uint64{3, 1, 2} {
		if err := c.AddGame(id); err != nil {
			t.Fatalf("AddGame(%d): %v", id, err)
		}
	}
	ids, err := c.KnownGames()
	if err != nil {
		t.Fatalf("KnownGames: %v", err)
	}
	seen := map[uint64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	for _, want := range []uint64{1, 2, 3} {
		if !seen[want] {
			t.Fatalf("expected game %d in known set, got %v", want, ids)
		}
	}
}
