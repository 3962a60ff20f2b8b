// Package mint orchestrates minting a selected address as an NFT.
//
// A mint attempt is a strictly sequential chain of suspending calls into the
// injected wallet:
//
//  1. RequestAccounts: authorize the signing account
//  2. ChainID: reject anything but the expected network
//  3. SendTransaction: mintNFT(owner, address, floor(lat*1e6), floor(lng*1e6))
//  4. WaitMined: block until the transaction is mined
//
// The receipt is then scanned for the Transfer event that carries the new
// token id. Only then is a MintedToken produced; a receipt without it is a
// failure, never a partial success.
//
// One Minter allows one attempt in flight. A call made while an attempt is
// unresolved returns ErrAttemptInFlight immediately and does nothing else.
// Nothing is retried and there is no local timeout. Cancelling the caller's
// context stops an attempt only before submission; once the transaction is
// sent it is waited on until the wallet answers.
package mint

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/wallet"
)

// State is the lifecycle of the most recent attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// Status is a snapshot of the Minter's transient state.
type Status struct {
	State     State        `json:"state"`
	AttemptID string       `json:"attemptId,omitempty"`
	Token     *MintedToken `json:"token,omitempty"`
	LastError Category     `json:"lastError,omitempty"`
}

// Busy reports whether an attempt is unresolved.
func (s Status) Busy() bool {
	return s.State == StateSubmitting
}

// Notifier surfaces the end-user notice for a failed attempt as it happens.
// The CLI and HTTP surfaces do not need one: they render Error.Notice from
// the returned error. The scenario harness wires one to trace notices.
type Notifier interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Alert calls f.
func (f NotifierFunc) Alert(message string) { f(message) }

// Recorder observes attempt outcomes. Implemented by metrics.Recorder.
type Recorder interface {
	AttemptStarted()
	AttemptFinished(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AttemptStarted()                      {}
func (nopRecorder) AttemptFinished(string, time.Duration) {}

// OutcomeConfirmed is the Recorder outcome for a successful attempt. Failed
// attempts report their Category.
const OutcomeConfirmed = "confirmed"

// Minter runs mint attempts against an injected wallet.
//
// Thread-safety: all methods are safe for concurrent use. Mint admits one
// attempt at a time.
type Minter struct {
	wallet   wallet.Wallet
	contract common.Address
	chainID  *big.Int
	logger   *slog.Logger
	notifier Notifier
	recorder Recorder
	ids      AttemptIDGenerator
	now      func() time.Time

	inFlight atomic.Bool

	mu     sync.Mutex
	status Status
}

// Option configures a Minter.
type Option func(*Minter)

// WithContract sets the AddressNFT contract address.
// Default: contract.DefaultAddress.
func WithContract(addr common.Address) Option {
	return func(m *Minter) { m.contract = addr }
}

// WithChainID sets the only network identifier accepted.
// Default: Sepolia (11155111).
func WithChainID(id *big.Int) Option {
	return func(m *Minter) {
		if id != nil {
			m.chainID = new(big.Int).Set(id)
		}
	}
}

// WithLogger sets the developer-facing log channel.
func WithLogger(l *slog.Logger) Option {
	return func(m *Minter) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNotifier sets where end-user notices go.
func WithNotifier(n Notifier) Option {
	return func(m *Minter) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithRecorder sets the attempt metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Minter) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithAttemptIDs sets the attempt id generator. Default: UUIDv7Generator.
func WithAttemptIDs(g AttemptIDGenerator) Option {
	return func(m *Minter) {
		if g != nil {
			m.ids = g
		}
	}
}

// WithClock overrides the time source used for attempt durations.
func WithClock(now func() time.Time) Option {
	return func(m *Minter) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Minter. w may be nil, in which case every attempt fails with
// CategoryNoWallet once a selection is present.
func New(w wallet.Wallet, opts ...Option) *Minter {
	m := &Minter{
		wallet:   w,
		contract: contract.DefaultAddress,
		chainID:  contract.Sepolia(),
		logger:   slog.Default(),
		notifier: NotifierFunc(func(string) {}),
		recorder: nopRecorder{},
		ids:      UUIDv7Generator{},
		now:      time.Now,
		status:   Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Contract returns the configured contract address.
func (m *Minter) Contract() common.Address {
	return m.contract
}

// ChainID returns the expected network identifier.
func (m *Minter) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

// Status returns a snapshot of the current state.
func (m *Minter) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	if s.Token != nil {
		tok := *s.Token
		s.Token = &tok
	}
	return s
}

// Mint runs one attempt for sel. On failure the returned error is an *Error
// and the category notice has already been sent to the Notifier.
func (m *Minter) Mint(ctx context.Context, sel *geo.Selection) (*MintedToken, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Debug("mint attempt ignored: another attempt is in flight")
		return nil, ErrAttemptInFlight
	}
	defer m.inFlight.Store(false)

	id := m.ids.Generate()
	started := m.now()
	m.setStatus(Status{State: StateSubmitting, AttemptID: id})
	m.recorder.AttemptStarted()

	log := m.logger.With("attempt", id)
	token, err := m.attempt(ctx, log, id, sel)
	elapsed := m.now().Sub(started)

	if err != nil {
		m.fail(log, err, elapsed)
		return nil, err
	}

	m.setStatus(Status{State: StateConfirmed, AttemptID: id, Token: token})
	m.recorder.AttemptFinished(OutcomeConfirmed, elapsed)
	log.Info("token minted",
		"token_id", token.TokenID,
		"owner", token.Owner,
		"tx", token.TransactionHash,
		"elapsed", elapsed,
	)
	return token, nil
}

func (m *Minter) attempt(ctx context.Context, log *slog.Logger, id string, sel *geo.Selection) (*MintedToken, error) {
	if sel == nil {
		return nil, newError(CategoryNoSelection, id, "no address selected", nil)
	}
	if err := sel.Validate(); err != nil {
		return nil, newError(CategoryInvalidSelection, id, "selection failed validation", err)
	}
	if m.wallet == nil {
		return nil, newError(CategoryNoWallet, id, "no wallet capability available", nil)
	}

	accounts, err := m.wallet.RequestAccounts(ctx)
	if err != nil {
		return nil, newError(CategoryRejected, id, "account authorization failed", err)
	}
	if len(accounts) == 0 {
		return nil, newError(CategoryRejected, id, "account authorization failed", wallet.ErrNoAccounts)
	}
	owner := accounts[0]

	chainID, err := m.wallet.ChainID(ctx)
	if err != nil {
		return nil, newError(CategoryWrongNetwork, id, "could not determine connected network", err)
	}
	if chainID == nil || chainID.Cmp(m.chainID) != 0 {
		return nil, newError(CategoryWrongNetwork, id,
			"connected to chain "+chainID.String()+", expected "+m.chainID.String(), nil)
	}

	lat, lon := geo.EncodeSelection(*sel)
	data, err := contract.PackMint(owner, sel.Address, lat, lon)
	if err != nil {
		return nil, newError(CategoryRejected, id, "could not encode mint call", err)
	}

	log.Debug("submitting mint",
		"owner", owner.Hex(),
		"selection", sel.String(),
		"scaled_lat", lat.String(),
		"scaled_lon", lon.String(),
	)
	txHash, err := m.wallet.SendTransaction(ctx, wallet.Call{From: owner, To: m.contract, Data: data})
	if err != nil {
		return nil, newError(CategoryRejected, id, "transaction submission failed", err)
	}
	log.Info("mint submitted, waiting for confirmation", "tx", txHash.Hex())

	// A submitted transaction cannot be recalled, so the wait outlives the
	// caller's cancellation and the attempt stays in flight until the wallet
	// answers.
	receipt, err := m.wallet.WaitMined(context.WithoutCancel(ctx), txHash)
	if err != nil {
		e := newError(CategoryRejected, id, "waiting for confirmation failed", err)
		e.TxHash = txHash.Hex()
		return nil, e
	}
	if receipt == nil {
		e := newError(CategoryRejected, id, "wallet returned no receipt", nil)
		e.TxHash = txHash.Hex()
		return nil, e
	}
	if receipt.TxHash != (common.Hash{}) {
		txHash = receipt.TxHash
	}
	log.Debug("receipt received",
		"tx", txHash.Hex(),
		"status", receipt.Status,
		"block", receipt.BlockNumber,
		"logs", len(receipt.Logs),
	)
	if receipt.Status != types.ReceiptStatusSuccessful {
		e := newError(CategoryRejected, id, "transaction reverted", nil)
		e.TxHash = txHash.Hex()
		return nil, e
	}

	transfer, err := contract.FindTransfer(receipt.Logs, m.contract, owner)
	if err != nil {
		e := newError(CategoryMissingTransfer, id, "confirmed receipt has no Transfer event", err)
		e.TxHash = txHash.Hex()
		return nil, e
	}

	return &MintedToken{
		TokenID:         transfer.TokenID.String(),
		Owner:           owner.Hex(),
		Address:         sel.Address,
		Lat:             sel.Lat,
		Lng:             sel.Lng,
		TransactionHash: txHash.Hex(),
	}, nil
}

func (m *Minter) fail(log *slog.Logger, err error, elapsed time.Duration) {
	category, _ := CategoryOf(err)

	attrs := []any{"category", string(category), "error", err, "elapsed", elapsed}
	var me *Error
	if errors.As(err, &me) && me.TxHash != "" {
		attrs = append(attrs, "tx", me.TxHash)
	}
	attrs = append(attrs, wallet.Diagnose(err).Attrs()...)
	log.Error("mint attempt failed", attrs...)

	m.mu.Lock()
	m.status = Status{State: StateFailed, AttemptID: m.status.AttemptID, LastError: category}
	m.mu.Unlock()

	m.recorder.AttemptFinished(string(category), elapsed)
	m.notifier.Alert(category.Notice())
}

func (m *Minter) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}
