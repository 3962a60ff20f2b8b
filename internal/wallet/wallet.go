// Package wallet models the provider capability the mint flow depends on:
// account authorization, network query, transaction submission, and
// receipt retrieval.
//
// The mint flow only ever sees the Wallet interface. RPCWallet backs it with
// a go-ethereum JSON-RPC client and a local signing key; tests substitute a
// scripted double.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoAccounts is returned when the wallet authorizes no accounts.
var ErrNoAccounts = errors.New("wallet authorized no accounts")

// Call is a contract call: a state-changing transaction when submitted
// through SendTransaction, a read when passed to CallContract.
type Call struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Wallet is the injected provider capability.
type Wallet interface {
	// RequestAccounts asks for account authorization. The first account is
	// the one that signs.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID reports the identifier of the connected network.
	ChainID(ctx context.Context) (*big.Int, error)

	// SendTransaction signs and submits call, returning the transaction hash.
	SendTransaction(ctx context.Context, call Call) (common.Hash, error)

	// WaitMined blocks until the transaction is mined and returns its receipt.
	// There is no local timeout; ctx governs how long to wait.
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// CallContract executes a read-only call against the latest block.
	CallContract(ctx context.Context, call Call) ([]byte, error)
}
