package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/mint"
	"github.com/roach88/geomint/internal/wallet"
)

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	chainFlags

	Address string
	Lat     float64
	Lng     float64
}

// mintOutput is the JSON payload of a successful mint.
type mintOutput struct {
	*mint.MintedToken
	ExplorerURL string `json:"explorerUrl"`
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an address as an NFT",
		Long: `Mint the selected address and coordinates as an AddressNFT token.

Coordinates are sent as floor(value * 1e6). The command waits until the
transaction is mined and reports the token id from the Transfer event.

Exit codes:
  0 - Token minted
  1 - Mint attempt failed (see the error category)
  2 - Command error (bad config, unreachable node, etc.)

Examples:
  geomint mint --address "1 Market St, San Francisco" --lat 37.7749 --lng -122.4194 --key-env GEOMINT_KEY
  geomint mint -c geomint.yaml --address "Shibuya Crossing" --lat 35.6595 --lng 139.7005 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Address, "address", "", "address text to mint")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude in degrees")
	opts.chainFlags.register(cmd)

	return cmd
}

// selection returns nil when none of the selection flags were given and an
// invalid_selection error when only some were.
func (o *MintOptions) selection(cmd *cobra.Command) (*geo.Selection, error) {
	fl := cmd.Flags()
	var address *string
	var lat, lng *float64
	if fl.Changed("address") {
		address = &o.Address
	}
	if fl.Changed("lat") {
		lat = &o.Lat
	}
	if fl.Changed("lng") {
		lng = &o.Lng
	}
	sel, err := geo.Resolve(address, lat, lng)
	if err != nil {
		return nil, mint.IncompleteSelection(err)
	}
	return sel, nil
}

func runMint(cmd *cobra.Command, opts *MintOptions) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, &opts.chainFlags)
	if err != nil {
		return err
	}

	sel, err := opts.selection(cmd)
	if err != nil {
		return reportMintFailure(out, err)
	}

	// Without a selection the attempt fails before any wallet call, so no
	// key is loaded.
	var w wallet.Wallet
	if sel != nil {
		opened, closeWallet, err := openWallet(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeWallet()
		w = opened
	}

	minter := newMinter(cfg, w, logger)
	if sel != nil {
		out.VerboseLog("minting %s on contract %s", sel, minter.Contract().Hex())
	}

	token, err := minter.Mint(ctx, sel)
	if err != nil {
		return reportMintFailure(out, err)
	}

	return out.Success(mintOutput{MintedToken: token, ExplorerURL: token.ExplorerURL()}, formatToken(token))
}

// reportMintFailure writes a categorized failure and returns a reported exit
// error.
func reportMintFailure(out *OutputFormatter, err error) error {
	var me *mint.Error
	if !errors.As(err, &me) {
		return WrapExitError(ExitFailure, "mint failed", err)
	}
	details := map[string]string{}
	if me.AttemptID != "" {
		details["attemptId"] = me.AttemptID
	}
	if me.TxHash != "" {
		details["transactionHash"] = me.TxHash
	}
	if me.Category == mint.CategoryInvalidSelection && me.Err != nil {
		details["cause"] = me.Err.Error()
	}
	if err := out.Error(string(me.Category), me.Notice(), details); err != nil {
		return err
	}
	return &ExitError{Code: ExitFailure, Message: me.Notice(), Err: err, Reported: true}
}

func formatToken(t *mint.MintedToken) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Minted token #%s\n", t.TokenID)
	fmt.Fprintf(&b, "  Address:     %s\n", t.Address)
	fmt.Fprintf(&b, "  Coordinates: %g, %g\n", t.Lat, t.Lng)
	fmt.Fprintf(&b, "  Owner:       %s\n", t.Owner)
	fmt.Fprintf(&b, "  Transaction: %s\n", t.TransactionHash)
	fmt.Fprintf(&b, "  Explorer:    %s", t.ExplorerURL())
	return b.String()
}
