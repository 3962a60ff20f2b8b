package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultPollInterval is how often WaitMined asks for a receipt.
const DefaultPollInterval = 2 * time.Second

// Backend is the subset of *ethclient.Client used by RPCWallet.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

// RPCWallet implements Wallet over a JSON-RPC node with a single local key.
//
// Thread-safety: RPCWallet holds no mutable state; concurrent use is safe,
// although nonces are taken from the pending pool so parallel sends from the
// same key may collide.
type RPCWallet struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	logger       *slog.Logger
	closer       func()
}

var _ Wallet = (*RPCWallet)(nil)

// Option configures an RPCWallet.
type Option func(*RPCWallet)

// WithPollInterval sets how often WaitMined polls for a receipt.
func WithPollInterval(d time.Duration) Option {
	return func(w *RPCWallet) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(w *RPCWallet) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewRPCWallet wraps backend with key. The key is required: a wallet without
// a signer is modelled as no wallet at all.
func NewRPCWallet(backend Backend, key *ecdsa.PrivateKey, opts ...Option) (*RPCWallet, error) {
	if backend == nil {
		return nil, errors.New("wallet: backend is nil")
	}
	if key == nil {
		return nil, errors.New("wallet: signing key is nil")
	}
	w := &RPCWallet{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dial connects to rawURL and returns a wallet signing with key.
// Close releases the connection.
func Dial(ctx context.Context, rawURL string, key *ecdsa.PrivateKey, opts ...Option) (*RPCWallet, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	w, err := NewRPCWallet(client, key, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.closer = client.Close
	return w, nil
}

// Close releases the underlying connection, if the wallet owns one.
func (w *RPCWallet) Close() {
	if w.closer != nil {
		w.closer()
	}
}

// Address returns the signing account.
func (w *RPCWallet) Address() common.Address {
	return w.from
}

// RequestAccounts returns the single local account. A local key needs no
// interactive authorization.
func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []common.Address{w.from}, nil
}

// ChainID queries the connected network.
func (w *RPCWallet) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	return id, nil
}

// SendTransaction fills nonce, fees and gas, signs with the local key and
// submits. EIP-1559 fees are used when the head block has a base fee.
func (w *RPCWallet) SendTransaction(ctx context.Context, call Call) (common.Hash, error) {
	if call.From != (common.Address{}) && call.From != w.from {
		return common.Hash{}, fmt.Errorf("wallet cannot sign for %s", call.From.Hex())
	}

	chainID, err := w.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("query nonce: %w", err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To

	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("query head: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := w.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From: w.from, To: &to, Data: call.Data, Value: value,
			GasTipCap: tip, GasFeeCap: feeCap,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID: chainID, Nonce: nonce, GasTipCap: tip, GasFeeCap: feeCap,
			Gas: gas, To: &to, Value: value, Data: call.Data,
		})
	} else {
		price, err := w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
		}
		gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From: w.from, To: &to, Data: call.Data, Value: value, GasPrice: price,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce: nonce, GasPrice: price, Gas: gas, To: &to, Value: value, Data: call.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	w.logger.Debug("transaction submitted",
		"tx", signed.Hash().Hex(),
		"nonce", nonce,
		"gas", signed.Gas(),
		"chain_id", chainID.String(),
	)
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of txHash until it is available or ctx
// ends. Lookup errors other than "not found" are logged and retried.
func (w *RPCWallet) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			w.logger.Debug("receipt retrieval failed", "tx", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CallContract executes a read-only call at the latest block.
func (w *RPCWallet) CallContract(ctx context.Context, call Call) ([]byte, error) {
	to := call.To
	from := call.From
	if from == (common.Address{}) {
		from = w.from
	}
	out, err := w.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: call.Data, Value: call.Value}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}
	return out, nil
}
