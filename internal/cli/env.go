package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/geomint/internal/config"
	"github.com/roach88/geomint/internal/mint"
	"github.com/roach88/geomint/internal/wallet"
)

// chainFlags override config values for commands that talk to a node.
type chainFlags struct {
	RPCURL    string
	Contract  string
	ChainID   int64
	KeyEnv    string
	KeyFile   string
	Keystore  string
	PassEnv   string
	SecretRef string
}

func (f *chainFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.RPCURL, "rpc-url", "", "JSON-RPC endpoint (default https://rpc.sepolia.org)")
	fl.StringVar(&f.Contract, "contract", "", "AddressNFT contract address")
	fl.Int64Var(&f.ChainID, "chain-id", 0, "expected chain id (default 11155111)")
	fl.StringVar(&f.KeyEnv, "key-env", "", "environment variable holding a hex private key")
	fl.StringVar(&f.KeyFile, "key-file", "", "file holding a hex private key")
	fl.StringVar(&f.Keystore, "keystore", "", "go-ethereum keystore JSON file")
	fl.StringVar(&f.PassEnv, "passphrase-env", "", "environment variable holding the keystore passphrase")
	fl.StringVar(&f.SecretRef, "key-secret", "", "Secret Manager version holding a hex private key")
}

// apply overrides cfg with any flag that was set. A key flag replaces the
// whole key source so sources never mix.
func (f *chainFlags) apply(cfg *config.Config) {
	if f.RPCURL != "" {
		cfg.RPCURL = f.RPCURL
	}
	if f.Contract != "" {
		cfg.ContractAddress = f.Contract
	}
	if f.ChainID != 0 {
		cfg.ChainID = f.ChainID
	}
	key := wallet.KeySource{
		HexEnv:        f.KeyEnv,
		HexFile:       f.KeyFile,
		Keystore:      f.Keystore,
		PassphraseEnv: f.PassEnv,
		SecretVersion: f.SecretRef,
	}
	if key.Configured() {
		cfg.Key = key
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions, flags *chainFlags) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if flags != nil {
		flags.apply(&cfg)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid flags", err)
		}
	}
	return cfg, nil
}

// openWallet resolves the signing key and dials the node. With no key
// configured it returns a nil Wallet so the attempt reports no_wallet.
// Replaced in tests.
var openWallet = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (wallet.Wallet, func(), error) {
	key, err := cfg.Key.Load(ctx)
	if errors.Is(err, wallet.ErrNoKeySource) {
		logger.Debug("no signing key configured")
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load signing key", err)
	}

	w, err := wallet.Dial(ctx, cfg.RPCURL, key,
		wallet.WithPollInterval(cfg.PollInterval),
		wallet.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to connect to node", err)
	}
	logger.Debug("wallet connected", "rpc", cfg.RPCURL, "account", w.Address().Hex())
	return w, w.Close, nil
}

// newMinter builds a Minter for cfg. w may be nil.
func newMinter(cfg config.Config, w wallet.Wallet, logger *slog.Logger, extra ...mint.Option) *mint.Minter {
	opts := []mint.Option{
		mint.WithContract(cfg.Contract()),
		mint.WithChainID(cfg.Chain()),
		mint.WithLogger(logger),
	}
	return mint.New(w, append(opts, extra...)...)
}
