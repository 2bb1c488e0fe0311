package chainclient

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// contractABI describes the subset of the game contract's interface this
// daemon calls (spec §4.3). A production deployment would generate this
// from the deployed contract's real ABI via abigen; this hand-written copy
// covers exactly the methods and events Client and EventSource use.
const contractABI = `[
	{"type":"function","name":"getGameInfo","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"gamemaster","type":"address"},{"name":"creator","type":"address"},
	            {"name":"stakeAmount","type":"uint256"},{"name":"open","type":"bool"},
	            {"name":"playerCount","type":"uint256"},{"name":"hasOpened","type":"bool"},
	            {"name":"hasClosed","type":"bool"}]},
	{"type":"function","name":"getCommitRevealState","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"committedHash","type":"bytes32"},{"name":"commitBlockNumber","type":"uint256"},
	            {"name":"revealValue","type":"bytes32"},{"name":"randomHash","type":"bytes32"},
	            {"name":"hasCommitted","type":"bool"},{"name":"hasRevealed","type":"bool"},
	            {"name":"hasStoredBlockHash","type":"bool"},{"name":"mapSize","type":"uint256"}]},
	{"type":"function","name":"getPayoutInfo","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"winners","type":"address[]"},{"name":"payoutAmount","type":"uint256"},
	            {"name":"hasPaidOut","type":"bool"}]},
	{"type":"function","name":"getPlayers","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"players","type":"address[]"}]},
	{"type":"function","name":"getCommitBlockHash","stateMutability":"view",
	 "inputs":[{"name":"gameId","type":"uint256"}],
	 "outputs":[{"name":"hash","type":"bytes32"}]},
	{"type":"function","name":"commitHash","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"hash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"storeCommitBlockHash","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"serverUrl","type":"string"}],"outputs":[]},
	{"type":"function","name":"revealHash","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"secret","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"payout","stateMutability":"nonpayable",
	 "inputs":[{"name":"gameId","type":"uint256"},{"name":"winners","type":"address[]"}],"outputs":[]},
	{"type":"event","name":"GameCreated","anonymous":false,
	 "inputs":[{"name":"gameId","type":"uint256","indexed":true},{"name":"gamemaster","type":"address","indexed":true}]},
	{"type":"event","name":"GameOpened","anonymous":false,
	 "inputs":[{"name":"gameId","type":"uint256","indexed":true}]},
	{"type":"event","name":"GameClosed","anonymous":false,
	 "inputs":[{"name":"gameId","type":"uint256","indexed":true}]},
	{"type":"event","name":"HashCommitted","anonymous":false,
	 "inputs":[{"name":"gameId","type":"uint256","indexed":true}]}
]`

// ParseContractABI parses the embedded ABI description, for callers that
// need to construct a bind.BoundContract directly.
func ParseContractABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chainclient: parse contract abi: %w", err)
	}
	return parsed, nil
}

// genericContract implements Contract over a bind.BoundContract, decoding
// each method's positional outputs into the Go type Client expects. This is
// the hand-rolled equivalent of what abigen would generate per-method.
type genericContract struct {
	bc *bind.BoundContract
}

// NewBoundContract builds a Contract backed by a live bind.BoundContract
// for the given address, using the embedded ABI.
func NewBoundContract(address common.Address, backend bind.ContractBackend) (Contract, error) {
	parsed, err := ParseContractABI()
	if err != nil {
		return nil, err
	}
	bc := bind.NewBoundContract(address, parsed, backend, backend, backend)
	return &genericContract{bc: bc}, nil
}

func (g *genericContract) Call(ctx context.Context, result any, method string, args ...any) error {
	var raw []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := g.bc.Call(opts, &raw, method, args...); err != nil {
		return err
	}
	return decodeCallResult(method, raw, result)
}

func (g *genericContract) Transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	txOpts := *opts
	txOpts.Context = ctx
	return g.bc.Transact(&txOpts, method, args...)
}

func decodeCallResult(method string, raw []interface{}, result any) error {
	switch method {
	case "getGameInfo":
		out, ok := result.(*GameInfo)
		if !ok || len(raw) < 7 {
			return fmt.Errorf("chainclient: decode getGameInfo: unexpected result shape")
		}
		out.Gamemaster = raw[0].(common.Address)
		out.Creator = raw[1].(common.Address)
		out.StakeAmount = raw[2].(*big.Int).Uint64()
		out.Open = raw[3].(bool)
		out.PlayerCount = int(raw[4].(*big.Int).Int64())
		out.HasOpened = raw[5].(bool)
		out.HasClosed = raw[6].(bool)
	case "getCommitRevealState":
		out, ok := result.(*CommitRevealState)
		if !ok || len(raw) < 8 {
			return fmt.Errorf("chainclient: decode getCommitRevealState: unexpected result shape")
		}
		out.CommittedHash = raw[0].([32]byte)
		out.CommitBlockNumber = raw[1].(*big.Int).Uint64()
		out.RevealValue = raw[2].([32]byte)
		out.RandomHash = raw[3].([32]byte)
		out.HasCommitted = raw[4].(bool)
		out.HasRevealed = raw[5].(bool)
		out.HasStoredBlockHash = raw[6].(bool)
		out.MapSize = int(raw[7].(*big.Int).Int64())
	case "getPayoutInfo":
		out, ok := result.(*PayoutInfo)
		if !ok || len(raw) < 3 {
			return fmt.Errorf("chainclient: decode getPayoutInfo: unexpected result shape")
		}
		out.Winners = raw[0].([]common.Address)
		out.PayoutAmount = raw[1].(*big.Int).Uint64()
		out.HasPaidOut = raw[2].(bool)
	case "getPlayers":
		out, ok := result.(*[]string)
		if !ok || len(raw) < 1 {
			return fmt.Errorf("chainclient: decode getPlayers: unexpected result shape")
		}
		addrs := raw[0].([]common.Address)
		players := make([]string, len(addrs))
		for i, a := range addrs {
			players[i] = a.Hex()
		}
		*out = players
	case "getCommitBlockHash":
		out, ok := result.(*[32]byte)
		if !ok || len(raw) < 1 {
			return fmt.Errorf("chainclient: decode getCommitBlockHash: unexpected result shape")
		}
		*out = raw[0].([32]byte)
	default:
		return fmt.Errorf("chainclient: no decoder registered for call method %q", method)
	}
	return nil
}

// genericEvents implements EventSource over the same bound contract,
// decoding GameCreated/GameOpened/GameClosed/HashCommitted logs.
type genericEvents struct {
	bc *bind.BoundContract
}

// NewBoundEventSource builds an EventSource over the same address/backend
// as NewBoundContract.
func NewBoundEventSource(address common.Address, backend bind.ContractFilterer) (EventSource, error) {
	parsed, err := ParseContractABI()
	if err != nil {
		return nil, err
	}
	bc := bind.NewBoundContract(address, parsed, nil, nil, backend)
	return &genericEvents{bc: bc}, nil
}

func (g *genericEvents) FilterGameCreated(ctx context.Context, fromBlock uint64, gamemaster string) ([]Event, error) {
	logsCh, sub, err := g.bc.FilterLogs(&bind.FilterOpts{Start: fromBlock, Context: ctx}, "GameCreated",
		nil, []interface{}{common.HexToAddress(gamemaster)})
	if err != nil {
		return nil, fmt.Errorf("chainclient: filter GameCreated: %w", err)
	}
	defer sub.Unsubscribe()

	var out []Event
	for lg := range logsCh {
		out = append(out, decodeGameEventLog(EventGameCreated, lg))
	}
	select {
	case err := <-sub.Err():
		if err != nil {
			return nil, fmt.Errorf("chainclient: filter GameCreated: %w", err)
		}
	default:
	}
	return out, nil
}

func (g *genericEvents) WatchEvents(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	kinds := []EventKind{EventGameCreated, EventGameOpened, EventGameClosed, EventHashCommitted}
	for _, kind := range kinds {
		logsCh, sub, err := g.bc.WatchLogs(&bind.WatchOpts{Context: ctx}, string(kind))
		if err != nil {
			return nil, fmt.Errorf("chainclient: watch %s: %w", kind, err)
		}
		go forwardEventLogs(ctx, kind, logsCh, sub, out)
	}
	return out, nil
}

func forwardEventLogs(ctx context.Context, kind EventKind, logsCh chan types.Log, sub interface {
	Err() <-chan error
	Unsubscribe()
}, out chan<- Event) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case lg, ok := <-logsCh:
			if !ok {
				return
			}
			select {
			case out <- decodeGameEventLog(kind, lg):
			case <-ctx.Done():
				return
			}
		case err := <-sub.Err():
			if err != nil {
				log.Printf("[chainclient] %s subscription error: %v", kind, err)
			}
			return
		}
	}
}

// decodeGameEventLog extracts the gameId from the first indexed topic
// (topic 0 is always the event signature hash).
func decodeGameEventLog(kind EventKind, lg types.Log) Event {
	var gameID uint64
	if len(lg.Topics) > 1 {
		gameID = new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()
	}
	return Event{Kind: kind, GameID: gameID, BlockNumber: lg.BlockNumber, TxHash: lg.TxHash}
}
