package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/wallet"
)

// ErrNoWallet is returned by Lookup when the Minter has no wallet.
var ErrNoWallet = errors.New("no wallet capability available")

// Lookup reads the address data stored on-chain for tokenID. It is a plain
// read and does not interact with the in-flight guard.
func (m *Minter) Lookup(ctx context.Context, tokenID *big.Int) (*TokenRecord, error) {
	if m.wallet == nil {
		return nil, ErrNoWallet
	}
	data, err := contract.PackAddressData(tokenID)
	if err != nil {
		return nil, err
	}
	out, err := m.wallet.CallContract(ctx, wallet.Call{To: m.contract, Data: data})
	if err != nil {
		m.logger.Error("getAddressData call failed",
			append([]any{"token_id", tokenID.String(), "error", err}, wallet.Diagnose(err).Attrs()...)...)
		return nil, fmt.Errorf("lookup token %s: %w", tokenID, err)
	}
	rec, err := contract.UnpackAddressData(out)
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", tokenID, err)
	}
	return &TokenRecord{
		TokenID:   tokenID.String(),
		Address:   rec.AddressText,
		Lat:       geo.Decode(rec.Lat),
		Lng:       geo.Decode(rec.Lon),
		ScaledLat: rec.Lat,
		ScaledLng: rec.Lon,
	}, nil
}
