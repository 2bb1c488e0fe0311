// Package chainclient is a typed wrapper over the opaque on-chain RPC client
// for the specific contract operations the game-master daemon needs (spec
// §4.3). It is grounded on rpc/handler.go's one-method-per-concern shape:
// every chain read or write gets its own method with its own typed params
// and its own error translation, rather than a single generic "call"
// escape hatch.
package chainclient

import ethcommon "github.com/ethereum/go-ethereum/common"

// GameInfo is the result of getGameInfo.
type GameInfo struct {
	Gamemaster  ethcommon.Address
	Creator     ethcommon.Address
	StakeAmount uint64
	Open        bool
	PlayerCount int
	HasOpened   bool
	HasClosed   bool
}

// CommitRevealState is the result of getCommitRevealState.
type CommitRevealState struct {
	CommittedHash      [32]byte
	CommitBlockNumber  uint64
	RevealValue        [32]byte
	RandomHash         [32]byte
	HasCommitted       bool
	HasRevealed        bool
	HasStoredBlockHash bool
	MapSize            int
}

// PayoutInfo is the result of getPayoutInfo.
type PayoutInfo struct {
	Winners      []ethcommon.Address
	PayoutAmount uint64
	HasPaidOut   bool
}

// Receipt is the minimal confirmation a write method hands back: enough for
// the caller to log the transaction without the adapter leaking the chain
// library's own receipt type into the rest of the daemon.
type Receipt struct {
	TxHash      ethcommon.Hash
	BlockNumber uint64
}

// EventKind enumerates the contract events the orchestrator subscribes to
// and scans for (spec §4.3, §4.8).
type EventKind string

const (
	EventGameCreated   EventKind = "GameCreated"
	EventGameOpened    EventKind = "GameOpened"
	EventGameClosed    EventKind = "GameClosed"
	EventHashCommitted EventKind = "HashCommitted"
)

// Event is a structured record delivered by both the historical scan and
// the live subscription.
type Event struct {
	Kind        EventKind
	GameID      uint64
	BlockNumber uint64
	TxHash      ethcommon.Hash
}
