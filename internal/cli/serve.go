package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/geomint/internal/httpapi"
	"github.com/roach88/geomint/internal/metrics"
	"github.com/roach88/geomint/internal/mint"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	chainFlags
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mint flow over HTTP",
		Long: `Start the HTTP front-end: POST /api/mint, GET /api/status,
GET /api/tokens/{id} and GET /metrics. One mint runs at a time; a request
made while one is in flight gets 409.

Examples:
  geomint serve -c geomint.yaml
  geomint serve --listen :8080 --keystore signer.json --passphrase-env GEOMINT_PASS`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config, 127.0.0.1:8080)")
	opts.chainFlags.register(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := opts.Logger(cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, &opts.chainFlags)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.HTTP.Listen = opts.Listen
	}

	w, closeWallet, err := openWallet(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWallet()
	if w == nil {
		logger.Warn("serving without a wallet; every mint will fail with no_wallet")
	}

	recorder := metrics.NewRecorder()
	minter := newMinter(cfg, w, logger, mint.WithRecorder(recorder))
	srv := httpapi.New(minter, httpapi.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RatePerSec:     cfg.HTTP.RatePerSec,
		Burst:          cfg.HTTP.Burst,
		Metrics:        recorder.Handler(),
		Logger:         logger,
	})

	if err := srv.ListenAndServe(ctx, cfg.HTTP.Listen); err != nil {
		return WrapExitError(ExitCommandError, "http server failed", err)
	}
	return nil
}
