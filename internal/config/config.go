// Package config loads the optional geomint YAML configuration file.
//
// Every field has a default targeting the Sepolia deployment, so an absent
// file is valid. Command-line flags override file values in the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/wallet"
)

// Config is the geomint configuration.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the Ethereum node.
	RPCURL string `yaml:"rpc_url"`

	// ChainID is the only network mints are accepted on.
	ChainID int64 `yaml:"chain_id"`

	// ContractAddress is the AddressNFT deployment.
	ContractAddress string `yaml:"contract_address"`

	// PollInterval is how often a submitted transaction's receipt is polled.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Key locates the signing key. Empty means no wallet.
	Key wallet.KeySource `yaml:"key"`

	// HTTP configures the serve command.
	HTTP HTTP `yaml:"http"`
}

// HTTP configures the HTTP front-end.
type HTTP struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RatePerSec and Burst bound requests per client IP.
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		RPCURL:          contract.DefaultRPCURL,
		ChainID:         contract.SepoliaChainID,
		ContractAddress: contract.DefaultAddress.Hex(),
		PollInterval:    wallet.DefaultPollInterval,
		HTTP: HTTP{
			Listen:         "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
			RatePerSec:     1,
			Burst:          5,
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
// Unknown keys are rejected so typos surface as errors.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return errors.New("rpc_url is required")
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("rpc_url %q is not a URL", c.RPCURL)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive, got %d", c.ChainID)
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract_address %q is not a hex address", c.ContractAddress)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.HTTP.RatePerSec < 0 || c.HTTP.Burst < 0 {
		return errors.New("http.rate_per_sec and http.burst must not be negative")
	}
	return nil
}

// Contract returns the parsed contract address.
func (c Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// Chain returns ChainID as a big.Int.
func (c Config) Chain() *big.Int {
	return big.NewInt(c.ChainID)
}
