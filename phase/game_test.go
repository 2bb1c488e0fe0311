package phase

import "testing"

func TestDerivePhaseTable(t *testing.T) {
	cases := []struct {
		name string
		in   DerivedState
		want Phase
	}{
		{"fresh game", DerivedState{}, Created},
		{"committed only", DerivedState{HasCommitted: true}, Committed},
		{"closed without stored hash", DerivedState{HasClosed: true, HasCommitted: true}, Committed},
		{"closed and stored, no server", DerivedState{HasClosed: true, HasCommitted: true, HasStoredBlockHash: true}, Closed},
		{"closed, stored, server active, not finished", DerivedState{
			HasClosed: true, HasCommitted: true, HasStoredBlockHash: true, ThisServerActive: true,
		}, GameRunning},
		{"closed, stored, scores exist, all finished", DerivedState{
			HasClosed: true, HasCommitted: true, HasStoredBlockHash: true,
			ScoresExist: true, AllPlayersFinished: true,
		}, GameFinished},
		{"paid out, not revealed", DerivedState{HasPaidOut: true}, PayoutComplete},
		{"revealed overrides everything", DerivedState{
			HasClosed: true, HasCommitted: true, HasStoredBlockHash: true, HasPaidOut: true, HasRevealed: true,
		}, Complete},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DerivePhase(c.in); got != c.want {
				t.Errorf("DerivePhase(%+v) = %s, want %s", c.in, got, c.want)
			}
		})
	}
}

func TestApplyLocalPins(t *testing.T) {
	if got := ApplyLocalPins(GameFinished, true, false); got != PayoutComplete {
		t.Errorf("payoutSkipped: got %s, want %s", got, PayoutComplete)
	}
	if got := ApplyLocalPins(PayoutComplete, false, true); got != Complete {
		t.Errorf("revealSkipped: got %s, want %s", got, Complete)
	}
	if got := ApplyLocalPins(Closed, true, true); got != Closed {
		t.Errorf("pins should not affect unrelated phases: got %s, want %s", got, Closed)
	}
	if got := ApplyLocalPins(GameFinished, false, false); got != GameFinished {
		t.Errorf("no pins set: got %s, want %s", got, GameFinished)
	}
}

func TestBackoffFormula(t *testing.T) {
	if d := backoff(payoutBackoffUnit, payoutBackoffCap, 1, false); d != payoutBackoffUnit {
		t.Errorf("first retry: got %s, want %s", d, payoutBackoffUnit)
	}
	if d := backoff(payoutBackoffUnit, payoutBackoffCap, 10, false); d != payoutBackoffCap {
		t.Errorf("should saturate at cap: got %s, want %s", d, payoutBackoffCap)
	}
	if d := backoff(payoutInsufficientUnit, payoutInsufficientCap, 1, true); d != 2*payoutInsufficientUnit {
		t.Errorf("insufficient-funds first retry: got %s, want %s", d, 2*payoutInsufficientUnit)
	}
}

func TestTopScorersHandlesTies(t *testing.T) {
	scores := testScores(
		testPlayer("0xaaa", 10),
		testPlayer("0xbbb", 20),
		testPlayer("0xccc", 20),
	)
	winners := topScorers(scores)
	if len(winners) != 2 {
		t.Fatalf("expected 2 tied winners, got %v", winners)
	}
}
