package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/geomint/internal/geo"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Lat float64
	Lng float64
}

type encodeOutput struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	ScaledLat string  `json:"scaledLat"`
	ScaledLng string  `json:"scaledLng"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the on-chain fixed-point form of coordinates",
		Long: `Print floor(lat * 1e6) and floor(lng * 1e6), the integers mintNFT
receives. No wallet or node is contacted.

Examples:
  geomint encode --lat 37.7749 --lng -122.4194`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude in degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func runEncode(cmd *cobra.Command, opts *EncodeOptions) error {
	if err := geo.ValidateCoordinates(opts.Lat, opts.Lng); err != nil {
		return WrapExitError(ExitCommandError, "invalid coordinates", err)
	}
	lat, lng := geo.Encode(opts.Lat), geo.Encode(opts.Lng)
	return opts.formatter(cmd).Success(
		encodeOutput{Lat: opts.Lat, Lng: opts.Lng, ScaledLat: lat.String(), ScaledLng: lng.String()},
		fmt.Sprintf("lat %g -> %s\nlng %g -> %s", opts.Lat, lat, opts.Lng, lng),
	)
}
