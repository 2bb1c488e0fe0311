package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// BlockHashRetentionWindow is the number of recent blocks for which the
// chain guarantees blockhash(n) resolves on-chain. Anything older is
// irrecoverable (spec §4.4's freshness invariant).
const BlockHashRetentionWindow = 256

// StaleBlockThreshold is the conservative cutoff the daemon applies before
// the chain's hard retention window is actually hit, to leave margin for
// the 250 ms orchestrator tick and transaction confirmation latency.
const StaleBlockThreshold = 240

// Contract is the narrow calling convention the adapter needs from a bound
// contract instance: a read-only call and a state-mutating transaction,
// mirroring go-ethereum's accounts/abi/bind.BoundContract.Call/Transact.
// The concrete instance comes from NewBoundContract in binding.go, which
// wraps bind.BoundContract around a hand-written ABI; the rest of this
// package only depends on the calling convention.
type Contract interface {
	Call(ctx context.Context, result any, method string, args ...any) error
	Transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error)
}

// Client is the typed wrapper over the opaque RPC client described in spec
// §4.3. Every chain read or write gets its own method, grounded on
// rpc/handler.go's one-method-per-concern shape.
type Client interface {
	GetGameInfo(ctx context.Context, gameID uint64) (GameInfo, error)
	GetCommitRevealState(ctx context.Context, gameID uint64) (CommitRevealState, error)
	GetPayoutInfo(ctx context.Context, gameID uint64) (PayoutInfo, error)
	GetPlayers(ctx context.Context, gameID uint64) ([]string, error)
	GetCommitBlockHash(ctx context.Context, gameID uint64) ([32]byte, error)

	CommitHash(ctx context.Context, gameID uint64, hash [32]byte) (Receipt, error)
	StoreCommitBlockHash(ctx context.Context, gameID uint64, serverURL string) (Receipt, error)
	RevealHash(ctx context.Context, gameID uint64, secret [32]byte) (Receipt, error)
	Payout(ctx context.Context, gameID uint64, winners []string) (Receipt, error)

	// ScanHistorical returns every GameCreated event for this gamemaster
	// from fromBlock to the current head, for initial discovery (spec §4.8).
	ScanHistorical(ctx context.Context, fromBlock uint64) ([]Event, error)
	// Subscribe streams live GameCreated/GameOpened/GameClosed/HashCommitted
	// events until ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// CurrentBlock is the chain's current block number, used both to decide
	// when a commit block has landed (§4.4 step 3) and to evaluate the
	// freshness invariant (§4.4).
	CurrentBlock(ctx context.Context) (uint64, error)
}

// EventSource abstracts the log-filtering and log-watching half of the
// contract binding, kept separate from Contract because it deals in raw
// logs and topics rather than ABI-decoded call results.
type EventSource interface {
	FilterGameCreated(ctx context.Context, fromBlock uint64, gamemaster string) ([]Event, error)
	WatchEvents(ctx context.Context) (<-chan Event, error)
}

// EthClient implements Client over a live go-ethereum JSON-RPC connection
// plus a bound contract instance for the game contract's calls.
type EthClient struct {
	eth      *ethclient.Client
	contract Contract
	events   EventSource
	opts     *bind.TransactOpts
	gasLimit uint64
}

// NewEthClient wraps an established ethclient connection and bound contract.
// opts carries the gamemaster's signing key (built by the caller from the
// configured PRIVKEY, opaque to this package).
func NewEthClient(eth *ethclient.Client, contract Contract, events EventSource, opts *bind.TransactOpts, gasLimit uint64) *EthClient {
	return &EthClient{eth: eth, contract: contract, events: events, opts: opts, gasLimit: gasLimit}
}

func (c *EthClient) CurrentBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chainclient: current block: %w", err)
	}
	return n, nil
}

func (c *EthClient) GetGameInfo(ctx context.Context, gameID uint64) (GameInfo, error) {
	var out GameInfo
	if err := c.contract.Call(ctx, &out, "getGameInfo", new(big.Int).SetUint64(gameID)); err != nil {
		return GameInfo{}, fmt.Errorf("chainclient: getGameInfo(%d): %w", gameID, err)
	}
	return out, nil
}

func (c *EthClient) GetCommitRevealState(ctx context.Context, gameID uint64) (CommitRevealState, error) {
	var out CommitRevealState
	if err := c.contract.Call(ctx, &out, "getCommitRevealState", new(big.Int).SetUint64(gameID)); err != nil {
		return CommitRevealState{}, fmt.Errorf("chainclient: getCommitRevealState(%d): %w", gameID, err)
	}
	return out, nil
}

func (c *EthClient) GetPayoutInfo(ctx context.Context, gameID uint64) (PayoutInfo, error) {
	var out PayoutInfo
	if err := c.contract.Call(ctx, &out, "getPayoutInfo", new(big.Int).SetUint64(gameID)); err != nil {
		return PayoutInfo{}, fmt.Errorf("chainclient: getPayoutInfo(%d): %w", gameID, err)
	}
	return out, nil
}

func (c *EthClient) GetPlayers(ctx context.Context, gameID uint64) ([]string, error) {
	var addrs []string
	if err := c.contract.Call(ctx, &addrs, "getPlayers", new(big.Int).SetUint64(gameID)); err != nil {
		return nil, fmt.Errorf("chainclient: getPlayers(%d): %w", gameID, err)
	}
	return addrs, nil
}

// GetCommitBlockHash fails with ErrBlockHashUnavailable once the commit
// block has fallen outside the chain's 256-block blockhash() retention
// window (spec §4.3, §4.4).
func (c *EthClient) GetCommitBlockHash(ctx context.Context, gameID uint64) ([32]byte, error) {
	var hash [32]byte
	err := c.contract.Call(ctx, &hash, "getCommitBlockHash", new(big.Int).SetUint64(gameID))
	if err != nil {
		return [32]byte{}, translateCallError(err)
	}
	if hash == ([32]byte{}) {
		return [32]byte{}, ErrBlockHashUnavailable
	}
	return hash, nil
}

func (c *EthClient) CommitHash(ctx context.Context, gameID uint64, hash [32]byte) (Receipt, error) {
	return c.transact(ctx, "commitHash", new(big.Int).SetUint64(gameID), hash)
}

func (c *EthClient) StoreCommitBlockHash(ctx context.Context, gameID uint64, serverURL string) (Receipt, error) {
	return c.transact(ctx, "storeCommitBlockHash", new(big.Int).SetUint64(gameID), serverURL)
}

func (c *EthClient) RevealHash(ctx context.Context, gameID uint64, secret [32]byte) (Receipt, error) {
	return c.transact(ctx, "revealHash", new(big.Int).SetUint64(gameID), secret)
}

func (c *EthClient) Payout(ctx context.Context, gameID uint64, winners []string) (Receipt, error) {
	return c.transact(ctx, "payout", new(big.Int).SetUint64(gameID), winners)
}

func (c *EthClient) transact(ctx context.Context, method string, args ...any) (Receipt, error) {
	tx, err := c.contract.Transact(ctx, c.opts, method, args...)
	if err != nil {
		return Receipt{}, translateCallError(err)
	}
	receiptCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	rcpt, err := bind.WaitMined(receiptCtx, c.eth, tx)
	if err != nil {
		return Receipt{}, fmt.Errorf("chainclient: waitForReceipt %s: %w", method, &RevertedError{Detail: err.Error()})
	}
	if rcpt.Status == types.ReceiptStatusFailed {
		return Receipt{}, &RevertedError{Detail: fmt.Sprintf("%s reverted", method)}
	}
	return Receipt{TxHash: rcpt.TxHash, BlockNumber: rcpt.BlockNumber.Uint64()}, nil
}

// translateCallError maps known revert substrings onto the sentinel errors
// the rest of the daemon branches on (spec §4.3). Anything unrecognised
// becomes a RevertedError carrying the raw detail.
func translateCallError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return ErrInsufficientFunds
	case strings.Contains(msg, "not authorized"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "caller is not"):
		return ErrNotAuthorized
	case strings.Contains(msg, "block not ready"), strings.Contains(msg, "not yet mined"):
		return ErrBlockNotReady
	case strings.Contains(msg, "blockhash unavailable"), strings.Contains(msg, "hash unavailable"):
		return ErrBlockHashUnavailable
	default:
		return &RevertedError{Detail: err.Error()}
	}
}

func (c *EthClient) ScanHistorical(ctx context.Context, fromBlock uint64) ([]Event, error) {
	events, err := c.events.FilterGameCreated(ctx, fromBlock, c.opts.From.Hex())
	if err != nil {
		return nil, fmt.Errorf("chainclient: scan historical: %w", err)
	}
	return events, nil
}

func (c *EthClient) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch, err := c.events.WatchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainclient: subscribe: %w", err)
	}
	return ch, nil
}

// IsGameTooOldToStart applies the freshness invariant: a commit block more
// than StaleBlockThreshold blocks behind current is irrecoverable even
// though the chain's hard retention window is wider (spec §4.4).
func IsGameTooOldToStart(commitBlock, currentBlock uint64) bool {
	if currentBlock <= commitBlock {
		return false
	}
	return currentBlock-commitBlock > StaleBlockThreshold
}
