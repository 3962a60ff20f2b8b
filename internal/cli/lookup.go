package cli

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/roach88/geomint/internal/mint"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	chainFlags
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <token-id>",
		Short: "Read the address stored for a token",
		Long: `Call getAddressData on the AddressNFT contract and print the stored
address text and decoded coordinates.

Examples:
  geomint lookup 42 --key-env GEOMINT_KEY
  geomint lookup 42 -c geomint.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts, args[0])
		},
	}
	opts.chainFlags.register(cmd)
	return cmd
}

func runLookup(cmd *cobra.Command, opts *LookupOptions, rawID string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	id, ok := new(big.Int).SetString(rawID, 10)
	if !ok || id.Sign() < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid token id %q", rawID))
	}

	cfg, err := loadConfig(opts.RootOptions, &opts.chainFlags)
	if err != nil {
		return err
	}
	w, closeWallet, err := openWallet(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWallet()

	rec, err := newMinter(cfg, w, logger).Lookup(ctx, id)
	if errors.Is(err, mint.ErrNoWallet) {
		return WrapExitError(ExitCommandError, "lookup needs a node connection; configure a signing key", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "lookup failed", err)
	}

	text := fmt.Sprintf("Token #%s\n  Address:     %s\n  Coordinates: %g, %g (scaled %s, %s)",
		rec.TokenID, rec.Address, rec.Lat, rec.Lng, rec.ScaledLat, rec.ScaledLng)
	return out.Success(rec, text)
}
