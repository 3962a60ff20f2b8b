package mint

import (
	"math/big"

	"github.com/roach88/geomint/internal/contract"
)

// MintedToken is the display record of a successful mint. It is built only
// after the Transfer event for the mint has been observed and lives in
// transient state until the next attempt.
type MintedToken struct {
	TokenID         string  `json:"tokenId"`
	Owner           string  `json:"owner"`
	Address         string  `json:"address"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	TransactionHash string  `json:"transactionHash"`
}

// ExplorerURL links the mint transaction on the block explorer.
func (t MintedToken) ExplorerURL() string {
	return contract.ExplorerTxURL(t.TransactionHash)
}

// TokenRecord is the on-chain data stored for a token, as returned by
// getAddressData.
type TokenRecord struct {
	TokenID   string   `json:"tokenId"`
	Address   string   `json:"address"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	ScaledLat *big.Int `json:"scaledLat"`
	ScaledLng *big.Int `json:"scaledLng"`
}
