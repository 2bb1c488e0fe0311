package session

import (
	"errors"
	"testing"
	"time"

	"github.com/tolelom/gamemaster/mapgen"
)

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	m := mapgen.Generate([32]byte{1}, mapgen.Size(1))
	s := New(m, 1, [32]byte{2}, []string{"0xAAA"})
	s.Arm(time.Unix(0, 0))
	return s, "0xAAA"
}

func TestViewUnknownPlayer(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.View(time.Unix(0, 0), "0xdead")
	if !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestMoveInvalidDirection(t *testing.T) {
	s, addr := newTestSession(t)
	_, err := s.Move(time.Unix(0, 0), addr, "up")
	if !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestMoveWrapsAcrossTorus(t *testing.T) {
	size := mapgen.Size(1)
	m := mapgen.Generate([32]byte{1}, size)
	s := New(m, 1, [32]byte{2}, []string{"0xAAA"})
	s.Arm(time.Unix(0, 0))

	players := s.Players()
	start := players[0].Position

	// Move north `size` times; should land back on the starting row due to wrap.
	for i := 0; i < size; i++ {
		if _, err := s.Move(time.Unix(0, 0), "0xAAA", "north"); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	after := s.Players()[0].Position
	if after.Y != start.Y {
		t.Fatalf("expected Y to wrap back to %d, got %d", start.Y, after.Y)
	}
}

func TestMoveExhaustsBudget(t *testing.T) {
	s, addr := newTestSession(t)
	for i := 0; i < MaxMoves; i++ {
		if _, err := s.Move(time.Unix(0, 0), addr, "north"); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	_, err := s.Move(time.Unix(0, 0), addr, "north")
	if !errors.Is(err, ErrNoMovesRemaining) {
		t.Fatalf("expected ErrNoMovesRemaining, got %v", err)
	}
}

func TestMineDepletedTile(t *testing.T) {
	s, addr := newTestSession(t)
	// Mine once to guarantee depletion at the current tile, regardless of
	// what it started as (including an already-depleted roll).
	_, err := s.Mine(time.Unix(0, 0), addr)
	if err != nil && !errors.Is(err, ErrTileDepleted) {
		t.Fatalf("unexpected mine error: %v", err)
	}
	if err == nil {
		_, err = s.Mine(time.Unix(0, 0), addr)
		if !errors.Is(err, ErrTileDepleted) {
			t.Fatalf("expected ErrTileDepleted on second mine, got %v", err)
		}
	}
}

func TestMineExhaustsBudget(t *testing.T) {
	s, addr := newTestSession(t)
	successes := 0
	for i := 0; i < MaxMines; i++ {
		if _, err := s.Mine(time.Unix(0, 0), addr); err == nil {
			successes++
		}
		if _, err := s.Move(time.Unix(0, 0), addr, "east"); err != nil {
			t.Fatalf("move: %v", err)
		}
	}
	if successes == 0 {
		t.Skip("tile depleted before budget exhausted; timer/budget path exercised elsewhere")
	}
	_, err := s.Mine(time.Unix(0, 0), addr)
	if !errors.Is(err, ErrNoMinesRemaining) {
		t.Fatalf("expected ErrNoMinesRemaining after exhausting mines, got %v", err)
	}
}

func TestTimerExpiryZeroesBudgets(t *testing.T) {
	s, addr := newTestSession(t)
	future := time.Unix(0, 0).Add(Duration + time.Second)

	_, err := s.Move(future, addr, "north")
	if !errors.Is(err, ErrTimerExpired) {
		t.Fatalf("expected ErrTimerExpired, got %v", err)
	}
	players := s.Players()
	if players[0].MovesRemaining != 0 || players[0].MinesRemaining != 0 {
		t.Fatalf("expected budgets zeroed after expiry: %+v", players[0])
	}
}

func TestTimeRemainingFloorsAtZero(t *testing.T) {
	s, _ := newTestSession(t)
	remaining := s.TimeRemaining(time.Unix(0, 0).Add(Duration * 2))
	if remaining != 0 {
		t.Fatalf("expected zero, got %v", remaining)
	}
}

func TestMineStartingMarkerAwardsBonusPoints(t *testing.T) {
	s, addr := newTestSession(t)
	p := s.players[normalize(addr)]
	s.land[p.Position.Y][p.Position.X] = mapgen.TileStartingMarker

	result, err := s.Mine(time.Unix(0, 0), addr)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if result.PointsEarned != PointsStarting {
		t.Fatalf("expected PointsStarting (%d), got %d", PointsStarting, result.PointsEarned)
	}
}

func TestAllFinishedWhenMinesExhausted(t *testing.T) {
	s, addr := newTestSession(t)
	for i := 0; i < MaxMines+1; i++ {
		s.Mine(time.Unix(0, 0), addr)
		s.Move(time.Unix(0, 0), addr, "east")
	}
	if !s.AllFinished() {
		t.Fatal("expected all players finished once mines exhausted")
	}
}

func TestWrapHelper(t *testing.T) {
	cases := []struct{ c, size, want int }{
		{-1, 5, 4},
		{5, 5, 0},
		{0, 5, 0},
		{7, 5, 2},
	}
	for _, c := range cases {
		if got := wrap(c.c, c.size); got != c.want {
			t.Errorf("wrap(%d, %d) = %d, want %d", c.c, c.size, got, c.want)
		}
	}
}
