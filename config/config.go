// Package config loads the game-master daemon's configuration from the
// process environment (spec §6), grounded on the teacher's config.Config
// load-then-Validate shape but switched from a JSON file to env vars,
// since this daemon has no multi-node genesis/validator set to describe.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// DefaultChainID is Base mainnet's chain ID, the default per spec §6.
const DefaultChainID = 8453

// DefaultGameAPIBase is the default public URL base published on-chain via
// storeCommitBlockHash when GAME_API_BASE is unset (spec §6).
const DefaultGameAPIBase = "http://localhost"

// Config holds all daemon configuration, read once at startup.
type Config struct {
	ContractAddress string // CONTRACT_ADDRESS, required, 0x-prefixed 20 bytes
	ChainID         int64  // CHAIN_ID, default 8453
	GameAPIBase     string // GAME_API_BASE, default http://localhost
	PrivateKey      string // PRIVKEY, gamemaster signing key, opaque to the core
	JWTSecret       string // JWT_SECRET, bearer-token base secret

	RPCURL  string // RPC_URL, chain JSON-RPC endpoint
	DataDir string // DATA_DIR, artifact store + discovery cache root; default ./data
}

// Load reads configuration from the process environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		ChainID:         DefaultChainID,
		GameAPIBase:     DefaultGameAPIBase,
		PrivateKey:      os.Getenv("PRIVKEY"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RPCURL:          os.Getenv("RPC_URL"),
		DataDir:         "./data",
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHAIN_ID: %w", err)
		}
		cfg.ChainID = id
	}
	if v := os.Getenv("GAME_API_BASE"); v != "" {
		cfg.GameAPIBase = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS must not be empty")
	}
	if !ethcommon.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS: %q is not a valid 20-byte hex address", c.ContractAddress)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVKEY must not be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	return nil
}

// ServerURL builds the URL this process publishes on-chain for a game's
// listener (spec §6): "<GAME_API_BASE>:<8000+gameId>" when GAME_API_BASE
// already carries a scheme, else "http(s)://<GAME_API_BASE>:<port>".
func (c *Config) ServerURL(port int, tlsEnabled bool) string {
	base := c.GameAPIBase
	if strings.Contains(base, "://") {
		return fmt.Sprintf("%s:%d", base, port)
	}
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, base, port)
}

// ContractAddressLower is the lowercased contract address, used to derive
// the per-contract bearer-token secret (spec §3).
func (c *Config) ContractAddressLower() string {
	return strings.ToLower(c.ContractAddress)
}
