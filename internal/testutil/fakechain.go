package testutil

import (
	"context"
	"sync"

	"github.com/tolelom/gamemaster/chainclient"
)

// FakeChain is an in-memory chainclient.Client for tests, mirroring
// MemDB/MemArtifactStore's mutex-guarded map pattern. Tests seed Games and
// States directly and inspect Commits/Reveals/Payouts after exercising the
// code under test.
type FakeChain struct {
	mu sync.Mutex

	Games   map[uint64]chainclient.GameInfo
	States  map[uint64]chainclient.CommitRevealState
	Payouts map[uint64]chainclient.PayoutInfo
	Players map[uint64][]string
	Hashes  map[uint64][32]byte
	Block   uint64

	// Recorded writes, for assertions.
	Commits       map[uint64][32]byte
	StoredURLs    map[uint64]string
	Reveals       map[uint64][32]byte
	PaidOut       map[uint64][]string
	HistoricalErr error
	NextCallErr   error
}

// NewFakeChain returns an empty FakeChain ready for seeding.
func NewFakeChain() *FakeChain {
	return &FakeChain{
		Games:      make(map[uint64]chainclient.GameInfo),
		States:     make(map[uint64]chainclient.CommitRevealState),
		Payouts:    make(map[uint64]chainclient.PayoutInfo),
		Players:    make(map[uint64][]string),
		Hashes:     make(map[uint64][32]byte),
		Commits:    make(map[uint64][32]byte),
		StoredURLs: make(map[uint64]string),
		Reveals:    make(map[uint64][32]byte),
		PaidOut:    make(map[uint64][]string),
	}
}

func (f *FakeChain) takeErr() error {
	err := f.NextCallErr
	f.NextCallErr = nil
	return err
}

func (f *FakeChain) CurrentBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Block, f.takeErr()
}

func (f *FakeChain) GetGameInfo(ctx context.Context, gameID uint64) (chainclient.GameInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.GameInfo{}, err
	}
	return f.Games[gameID], nil
}

func (f *FakeChain) GetCommitRevealState(ctx context.Context, gameID uint64) (chainclient.CommitRevealState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.CommitRevealState{}, err
	}
	return f.States[gameID], nil
}

func (f *FakeChain) GetPayoutInfo(ctx context.Context, gameID uint64) (chainclient.PayoutInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.PayoutInfo{}, err
	}
	return f.Payouts[gameID], nil
}

func (f *FakeChain) GetPlayers(ctx context.Context, gameID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	return f.Players[gameID], nil
}

func (f *FakeChain) GetCommitBlockHash(ctx context.Context, gameID uint64) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return [32]byte{}, err
	}
	hash, ok := f.Hashes[gameID]
	if !ok {
		return [32]byte{}, chainclient.ErrBlockHashUnavailable
	}
	return hash, nil
}

func (f *FakeChain) CommitHash(ctx context.Context, gameID uint64, hash [32]byte) (chainclient.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.Receipt{}, err
	}
	f.Commits[gameID] = hash
	st := f.States[gameID]
	st.HasCommitted = true
	st.CommittedHash = hash
	f.States[gameID] = st
	return chainclient.Receipt{}, nil
}

func (f *FakeChain) StoreCommitBlockHash(ctx context.Context, gameID uint64, serverURL string) (chainclient.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.Receipt{}, err
	}
	f.StoredURLs[gameID] = serverURL
	st := f.States[gameID]
	st.HasStoredBlockHash = true
	f.States[gameID] = st
	return chainclient.Receipt{}, nil
}

func (f *FakeChain) RevealHash(ctx context.Context, gameID uint64, secret [32]byte) (chainclient.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.Receipt{}, err
	}
	f.Reveals[gameID] = secret
	st := f.States[gameID]
	st.HasRevealed = true
	st.RevealValue = secret
	f.States[gameID] = st
	return chainclient.Receipt{}, nil
}

func (f *FakeChain) Payout(ctx context.Context, gameID uint64, winners []string) (chainclient.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return chainclient.Receipt{}, err
	}
	f.PaidOut[gameID] = winners
	p := f.Payouts[gameID]
	p.HasPaidOut = true
	f.Payouts[gameID] = p
	return chainclient.Receipt{}, nil
}

func (f *FakeChain) ScanHistorical(ctx context.Context, fromBlock uint64) ([]chainclient.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HistoricalErr != nil {
		return nil, f.HistoricalErr
	}
	var out []chainclient.Event
	for gameID := range f.Games {
		out = append(out, chainclient.Event{Kind: chainclient.EventGameCreated, GameID: gameID})
	}
	return out, nil
}

func (f *FakeChain) Subscribe(ctx context.Context) (<-chan chainclient.Event, error) {
	ch := make(chan chainclient.Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
