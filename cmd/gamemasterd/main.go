// Command gamemasterd runs the automated game-master daemon (spec §1-§8):
// it discovers on-chain games for this gamemaster address, drives each
// through its commit-reveal and session lifecycle, and serves each game's
// players over its own HTTP listener.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tolelom/gamemaster/artifact"
	"github.com/tolelom/gamemaster/chainclient"
	"github.com/tolelom/gamemaster/config"
	"github.com/tolelom/gamemaster/events"
	"github.com/tolelom/gamemaster/orchestrator"
	"github.com/tolelom/gamemaster/orchestrator/discoverycache"
	"github.com/tolelom/gamemaster/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}

	artifacts := artifact.NewFileStore(cfg.DataDir)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "discovery"))
	if err != nil {
		log.Fatalf("open discovery cache: %v", err)
	}
	defer db.Close()
	cache := discoverycache.New(db)

	chain, err := dialChain(cfg)
	if err != nil {
		log.Fatalf("chain client: %v", err)
	}

	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventPhaseTransition, func(ev events.Event) {
		log.Printf("[gamemasterd] game %d: phase transition: %v", ev.GameID, ev.Data)
	})
	emitter.Subscribe(events.EventGameDiscovered, func(ev events.Event) {
		log.Printf("[gamemasterd] game %d: discovered", ev.GameID)
	})
	emitter.Subscribe(events.EventGameExpired, func(ev events.Event) {
		log.Printf("[gamemasterd] game %d: expired: %v", ev.GameID, ev.Data)
	})
	emitter.Subscribe(events.EventServerStarted, func(ev events.Event) {
		log.Printf("[gamemasterd] game %d: server started", ev.GameID)
	})
	emitter.Subscribe(events.EventServerStopped, func(ev events.Event) {
		log.Printf("[gamemasterd] game %d: server stopped", ev.GameID)
	})

	orch := orchestrator.New(chain, artifacts, cache, emitter, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("gamemasterd starting: contract=%s chainId=%d", cfg.ContractAddress, cfg.ChainID)
	if err := orch.Run(ctx); err != nil {
		log.Fatalf("orchestrator: %v", err)
	}
	log.Println("gamemasterd shut down cleanly")
}

// dialChain builds a chainclient.Client from the configured RPC endpoint,
// contract address, and gamemaster signing key. The contract/event bindings
// come from chainclient.NewBoundContract/NewBoundEventSource, the
// hand-written equivalent of an abigen-generated binding (see
// chainclient/binding.go) since no ABI file accompanies this spec.
func dialChain(cfg *config.Config) (chainclient.Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	key, err := crypto.HexToECDSA(stripHexPrefix(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse PRIVKEY: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	contractAddr := ethcommon.HexToAddress(cfg.ContractAddress)
	contract, err := chainclient.NewBoundContract(contractAddr, eth)
	if err != nil {
		return nil, fmt.Errorf("bind contract: %w", err)
	}
	eventSource, err := chainclient.NewBoundEventSource(contractAddr, eth)
	if err != nil {
		return nil, fmt.Errorf("bind event source: %w", err)
	}

	const defaultGasLimit = 500_000
	return chainclient.NewEthClient(eth, contract, eventSource, opts, defaultGasLimit), nil
}

func stripHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
