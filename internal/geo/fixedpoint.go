package geo

import (
	"math"
	"math/big"
)

// Scale is the fixed-point multiplier applied to coordinates before they are
// sent to the contract, which only stores integers. Six decimal digits is
// roughly 0.11 m at the equator.
const Scale = 1_000_000

var bigScale = big.NewFloat(Scale)

// Encode converts a coordinate to its on-chain integer form: floor(v * Scale).
//
// Floor, not truncation: negative values move toward negative infinity, so
// -12.3456789 encodes to -12345679. v must be finite; Encode returns nil for
// NaN and ±Inf, so callers validate with ValidateCoordinates first.
func Encode(v float64) *big.Int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	scaled := math.Floor(v * Scale)
	n, _ := big.NewFloat(scaled).Int(nil)
	return n
}

// EncodeSelection returns the scaled latitude and longitude of s.
func EncodeSelection(s Selection) (lat, lon *big.Int) {
	return Encode(s.Lat), Encode(s.Lng)
}

// Decode converts an on-chain integer back to degrees.
func Decode(n *big.Int) float64 {
	if n == nil {
		return 0
	}
	if n.IsInt64() {
		return float64(n.Int64()) / Scale
	}
	f := new(big.Float).SetInt(n)
	f.Quo(f, bigScale)
	v, _ := f.Float64()
	return v
}
