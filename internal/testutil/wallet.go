package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/wallet"
)

// Wallet method names as recorded in ScriptedWallet.Calls.
const (
	CallRequestAccounts = "RequestAccounts"
	CallChainID         = "ChainID"
	CallSendTransaction = "SendTransaction"
	CallWaitMined       = "WaitMined"
	CallContract        = "CallContract"
)

// DefaultOwner is the account ScriptedWallet authorizes unless told otherwise.
var DefaultOwner = common.HexToAddress("0x1111111111111111111111111111111111111111")

// DefaultTxHash is the hash ScriptedWallet reports for submitted transactions.
var DefaultTxHash = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")

// ScriptedWallet is a deterministic wallet.Wallet double. Each method returns
// the scripted value or error and records its name in call order.
//
// Thread-safety: safe for concurrent use via internal mutex. BeforeWait runs
// outside the lock so a test can park WaitMined on a channel.
type ScriptedWallet struct {
	Accounts    []common.Address
	AccountsErr error
	Chain       *big.Int
	ChainErr    error
	TxHash      common.Hash
	SendErr     error
	Receipt     *types.Receipt
	WaitErr     error
	CallOutput  []byte
	CallErr     error

	// BeforeWait, when set, runs at the start of WaitMined.
	BeforeWait func(ctx context.Context)

	mu    sync.Mutex
	calls []string
	sent  []wallet.Call
}

var _ wallet.Wallet = (*ScriptedWallet)(nil)

// NewScriptedWallet returns a wallet on Sepolia that authorizes DefaultOwner
// and mints tokenID on contractAddr.
func NewScriptedWallet(contractAddr common.Address, tokenID int64) *ScriptedWallet {
	return &ScriptedWallet{
		Accounts: []common.Address{DefaultOwner},
		Chain:    contract.Sepolia(),
		TxHash:   DefaultTxHash,
		Receipt:  MintReceipt(contractAddr, DefaultOwner, tokenID, DefaultTxHash),
	}
}

// MintReceipt builds a successful receipt with one Transfer(0x0 -> to, tokenID) log.
func MintReceipt(contractAddr, to common.Address, tokenID int64, txHash common.Hash) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(1),
		Logs:        []*types.Log{TransferLog(contractAddr, common.Address{}, to, tokenID)},
	}
}

// TransferLog builds a Transfer event log as emitted by contractAddr.
func TransferLog(contractAddr, from, to common.Address, tokenID int64) *types.Log {
	return &types.Log{
		Address: contractAddr,
		Topics: []common.Hash{
			contract.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func (w *ScriptedWallet) record(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, name)
}

// Calls returns the wallet methods invoked so far, in order.
func (w *ScriptedWallet) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.calls))
	copy(out, w.calls)
	return out
}

// Sent returns the calls passed to SendTransaction.
func (w *ScriptedWallet) Sent() []wallet.Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]wallet.Call, len(w.sent))
	copy(out, w.sent)
	return out
}

// RequestAccounts implements wallet.Wallet.
func (w *ScriptedWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.record(CallRequestAccounts)
	if w.AccountsErr != nil {
		return nil, w.AccountsErr
	}
	return w.Accounts, nil
}

// ChainID implements wallet.Wallet.
func (w *ScriptedWallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.record(CallChainID)
	if w.ChainErr != nil {
		return nil, w.ChainErr
	}
	return w.Chain, nil
}

// SendTransaction implements wallet.Wallet.
func (w *ScriptedWallet) SendTransaction(ctx context.Context, call wallet.Call) (common.Hash, error) {
	w.mu.Lock()
	w.calls = append(w.calls, CallSendTransaction)
	w.sent = append(w.sent, call)
	w.mu.Unlock()
	if w.SendErr != nil {
		return common.Hash{}, w.SendErr
	}
	return w.TxHash, nil
}

// WaitMined implements wallet.Wallet. Like RPCWallet it gives up with
// ctx.Err() once ctx is done.
func (w *ScriptedWallet) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	w.record(CallWaitMined)
	if w.BeforeWait != nil {
		w.BeforeWait(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.WaitErr != nil {
		return nil, w.WaitErr
	}
	return w.Receipt, nil
}

// CallContract implements wallet.Wallet.
func (w *ScriptedWallet) CallContract(ctx context.Context, call wallet.Call) ([]byte, error) {
	w.record(CallContract)
	if w.CallErr != nil {
		return nil, w.CallErr
	}
	return w.CallOutput, nil
}
