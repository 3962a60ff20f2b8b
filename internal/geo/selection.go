// Package geo holds the map selection handed to the mint flow and the
// fixed-point encoding used to carry coordinates on-chain.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Coordinate bounds (WGS 84).
const (
	MaxLatitude  = 90.0
	MaxLongitude = 180.0
)

// ErrEmptyAddress is returned when the selection carries no address text.
var ErrEmptyAddress = errors.New("address text is empty")

// ErrIncomplete is returned by Resolve when some but not all selection fields
// are present.
var ErrIncomplete = errors.New("address, lat and lng are all required")

// Selection is the record produced by the address selector when the user
// picks a point on the map. It is immutable once handed to the mint flow
// and only lives for the duration of one attempt.
type Selection struct {
	Address string  `json:"address" yaml:"address"`
	Lat     float64 `json:"lat" yaml:"lat"`
	Lng     float64 `json:"lng" yaml:"lng"`
}

// Validate checks that the address text is present and that both
// coordinates are finite and within WGS 84 bounds.
func (s Selection) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return ErrEmptyAddress
	}
	return ValidateCoordinates(s.Lat, s.Lng)
}

// ValidateCoordinates checks that lat and lng are finite and within WGS 84
// bounds.
func ValidateCoordinates(lat, lng float64) error {
	if err := checkCoordinate("lat", lat, MaxLatitude); err != nil {
		return err
	}
	return checkCoordinate("lng", lng, MaxLongitude)
}

// Resolve assembles a selection from optional fields as they arrive from a
// request body or command-line flags. It returns nil, nil when no field is
// present. A partial set is an error, never a zero-filled Selection.
func Resolve(address *string, lat, lng *float64) (*Selection, error) {
	if address == nil && lat == nil && lng == nil {
		return nil, nil
	}
	var missing []string
	if address == nil {
		missing = append(missing, "address")
	}
	if lat == nil {
		missing = append(missing, "lat")
	}
	if lng == nil {
		missing = append(missing, "lng")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return &Selection{Address: *address, Lat: *lat, Lng: *lng}, nil
}

// String renders the selection for logs.
func (s Selection) String() string {
	return fmt.Sprintf("%q (%g, %g)", s.Address, s.Lat, s.Lng)
}

func checkCoordinate(name string, v, bound float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not a finite number: %v", name, v)
	}
	if v < -bound || v > bound {
		return fmt.Errorf("%s out of range [-%g, %g]: %v", name, bound, bound, v)
	}
	return nil
}
