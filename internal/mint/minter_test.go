package mint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/testutil"
	"github.com/roach88/geomint/internal/wallet"
)

var testContract = contract.DefaultAddress

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

func (a *alerts) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

type outcomes struct {
	mu       sync.Mutex
	started  int
	finished []string
	elapsed  []time.Duration
}

func (o *outcomes) AttemptStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *outcomes) AttemptFinished(outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, outcome)
	o.elapsed = append(o.elapsed, elapsed)
}

func newTestMinter(w wallet.Wallet, n Notifier, r Recorder) *Minter {
	opts := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		WithAttemptIDs(NewFixedGenerator("attempt-1", "attempt-2", "attempt-3")),
	}
	if n != nil {
		opts = append(opts, WithNotifier(n))
	}
	if r != nil {
		opts = append(opts, WithRecorder(r))
	}
	return New(w, opts...)
}

func sanFrancisco() *geo.Selection {
	return &geo.Selection{Address: "1 Market St, San Francisco", Lat: 37.7749, Lng: -122.4194}
}

func TestMint_Success(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 42)
	a := &alerts{}
	o := &outcomes{}
	m := newTestMinter(w, a, o)

	sel := sanFrancisco()
	token, err := m.Mint(context.Background(), sel)
	require.NoError(t, err)

	assert.Equal(t, &MintedToken{
		TokenID:         "42",
		Owner:           testutil.DefaultOwner.Hex(),
		Address:         sel.Address,
		Lat:             sel.Lat,
		Lng:             sel.Lng,
		TransactionHash: testutil.DefaultTxHash.Hex(),
	}, token)

	assert.Equal(t, []string{
		testutil.CallRequestAccounts,
		testutil.CallChainID,
		testutil.CallSendTransaction,
		testutil.CallWaitMined,
	}, w.Calls())
	assert.Empty(t, a.all())
	assert.Equal(t, 1, o.started)
	assert.Equal(t, []string{OutcomeConfirmed}, o.finished)

	st := m.Status()
	assert.Equal(t, StateConfirmed, st.State)
	assert.Equal(t, "attempt-1", st.AttemptID)
	assert.Equal(t, token, st.Token)
	assert.False(t, st.Busy())
}

func TestMint_SubmitsEncodedCall(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	m := newTestMinter(w, nil, nil)

	sel := &geo.Selection{Address: "Avenida Paulista", Lat: -23.5613, Lng: -46.6565}
	_, err := m.Mint(context.Background(), sel)
	require.NoError(t, err)

	sent := w.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, testContract, sent[0].To)
	assert.Equal(t, testutil.DefaultOwner, sent[0].From)

	args, err := contract.AddressNFT.Methods[contract.MethodMint].Inputs.Unpack(sent[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultOwner, args[0])
	assert.Equal(t, "Avenida Paulista", args[1])
	assert.Equal(t, 0, geo.Encode(-23.5613).Cmp(args[2].(*big.Int)))
	assert.Equal(t, 0, geo.Encode(-46.6565).Cmp(args[3].(*big.Int)))
}

func TestMint_NoSelectionNeverTouchesWallet(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	a := &alerts{}
	m := newTestMinter(w, a, nil)

	token, err := m.Mint(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, token)
	assert.True(t, IsCategory(err, CategoryNoSelection))
	assert.Empty(t, w.Calls())
	assert.Equal(t, []string{CategoryNoSelection.Notice()}, a.all())
	assert.Equal(t, StateFailed, m.Status().State)
	assert.Equal(t, CategoryNoSelection, m.Status().LastError)
}

func TestMint_InvalidSelectionNeverTouchesWallet(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	m := newTestMinter(w, nil, nil)

	_, err := m.Mint(context.Background(), &geo.Selection{Address: "nowhere", Lat: 91, Lng: 0})
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryInvalidSelection))
	assert.Empty(t, w.Calls())
}

func TestMint_NoWallet(t *testing.T) {
	a := &alerts{}
	m := newTestMinter(nil, a, nil)

	_, err := m.Mint(context.Background(), sanFrancisco())
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryNoWallet))
	assert.Equal(t, []string{CategoryNoWallet.Notice()}, a.all())
}

func TestMint_WrongNetworkNeverSubmits(t *testing.T) {
	for _, chain := range []int64{1, 5, 17000, 31337} {
		w := testutil.NewScriptedWallet(testContract, 1)
		w.Chain = big.NewInt(chain)
		a := &alerts{}
		m := newTestMinter(w, a, nil)

		_, err := m.Mint(context.Background(), sanFrancisco())
		require.Error(t, err, "chain %d", chain)
		assert.True(t, IsCategory(err, CategoryWrongNetwork))
		assert.Equal(t, []string{testutil.CallRequestAccounts, testutil.CallChainID}, w.Calls())
		assert.Empty(t, w.Sent())
		assert.Equal(t, []string{"Please connect to the Sepolia network."}, a.all())
	}
}

func TestMint_CustomChainID(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 3)
	w.Chain = big.NewInt(31337)
	m := New(w,
		WithChainID(big.NewInt(31337)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	token, err := m.Mint(context.Background(), sanFrancisco())
	require.NoError(t, err)
	assert.Equal(t, "3", token.TokenID)
	assert.Equal(t, int64(31337), m.ChainID().Int64())
}

func TestMint_ChainQueryFails(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	w.ChainErr = errors.New("connection refused")
	m := newTestMinter(w, nil, nil)

	_, err := m.Mint(context.Background(), sanFrancisco())
	assert.True(t, IsCategory(err, CategoryWrongNetwork))
	assert.ErrorIs(t, err, w.ChainErr)
	assert.Empty(t, w.Sent())
}

func TestMint_Rejections(t *testing.T) {
	declined := errors.New("user denied transaction signature")

	tests := []struct {
		name      string
		script    func(w *testutil.ScriptedWallet)
		wantCalls []string
		wantTx    bool
	}{
		{
			name:      "authorization declined",
			script:    func(w *testutil.ScriptedWallet) { w.AccountsErr = declined },
			wantCalls: []string{testutil.CallRequestAccounts},
		},
		{
			name:      "no accounts authorized",
			script:    func(w *testutil.ScriptedWallet) { w.Accounts = nil },
			wantCalls: []string{testutil.CallRequestAccounts},
		},
		{
			name:   "signing declined",
			script: func(w *testutil.ScriptedWallet) { w.SendErr = declined },
			wantCalls: []string{
				testutil.CallRequestAccounts, testutil.CallChainID, testutil.CallSendTransaction,
			},
		},
		{
			name:   "confirmation wait failed",
			script: func(w *testutil.ScriptedWallet) { w.WaitErr = errors.New("provider disconnected") },
			wantCalls: []string{
				testutil.CallRequestAccounts, testutil.CallChainID, testutil.CallSendTransaction, testutil.CallWaitMined,
			},
			wantTx: true,
		},
		{
			name:   "contract reverted",
			script: func(w *testutil.ScriptedWallet) { w.Receipt.Status = types.ReceiptStatusFailed },
			wantCalls: []string{
				testutil.CallRequestAccounts, testutil.CallChainID, testutil.CallSendTransaction, testutil.CallWaitMined,
			},
			wantTx: true,
		},
		{
			name:   "no receipt",
			script: func(w *testutil.ScriptedWallet) { w.Receipt = nil },
			wantCalls: []string{
				testutil.CallRequestAccounts, testutil.CallChainID, testutil.CallSendTransaction, testutil.CallWaitMined,
			},
			wantTx: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.NewScriptedWallet(testContract, 1)
			tt.script(w)
			a := &alerts{}
			o := &outcomes{}
			m := newTestMinter(w, a, o)

			token, err := m.Mint(context.Background(), sanFrancisco())
			require.Error(t, err)
			assert.Nil(t, token)
			assert.True(t, IsCategory(err, CategoryRejected), "got %v", err)
			assert.Equal(t, tt.wantCalls, w.Calls())
			assert.Equal(t, []string{CategoryRejected.Notice()}, a.all())
			assert.Equal(t, []string{string(CategoryRejected)}, o.finished)

			var me *Error
			require.True(t, errors.As(err, &me))
			assert.Equal(t, "attempt-1", me.AttemptID)
			if tt.wantTx {
				assert.Equal(t, testutil.DefaultTxHash.Hex(), me.TxHash)
			} else {
				assert.Empty(t, me.TxHash)
			}
		})
	}
}

func TestMint_MissingTransferEventNeverProducesToken(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	w.Receipt.Logs = nil
	a := &alerts{}
	m := newTestMinter(w, a, nil)

	token, err := m.Mint(context.Background(), sanFrancisco())
	require.Error(t, err)
	assert.Nil(t, token)
	assert.True(t, IsCategory(err, CategoryMissingTransfer))
	assert.ErrorIs(t, err, contract.ErrNoTransferEvent)
	assert.Nil(t, m.Status().Token)
	assert.Len(t, a.all(), 1)
}

func TestMint_TransferFromOtherContractIgnored(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	w.Receipt.Logs = []*types.Log{testutil.TransferLog(other, common.Address{}, testutil.DefaultOwner, 5)}
	m := newTestMinter(w, nil, nil)

	_, err := m.Mint(context.Background(), sanFrancisco())
	assert.True(t, IsCategory(err, CategoryMissingTransfer))
}

func TestMint_ReceiptHashPreferred(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 8)
	w.Receipt.TxHash = common.HexToHash("0xbb")
	m := newTestMinter(w, nil, nil)

	token, err := m.Mint(context.Background(), sanFrancisco())
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xbb").Hex(), token.TransactionHash)
}

func TestMint_SecondAttemptWhileInFlightIsInert(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 7)
	entered := make(chan struct{})
	release := make(chan struct{})
	w.BeforeWait = func(ctx context.Context) {
		close(entered)
		<-release
	}
	a := &alerts{}
	o := &outcomes{}
	m := newTestMinter(w, a, o)

	type result struct {
		token *MintedToken
		err   error
	}
	done := make(chan result, 1)
	go func() {
		tok, err := m.Mint(context.Background(), sanFrancisco())
		done <- result{tok, err}
	}()

	<-entered
	assert.True(t, m.Status().Busy())
	callsBefore := w.Calls()

	token, err := m.Mint(context.Background(), sanFrancisco())
	assert.Nil(t, token)
	assert.ErrorIs(t, err, ErrAttemptInFlight)
	assert.Equal(t, callsBefore, w.Calls(), "inert attempt must not touch the wallet")
	assert.Empty(t, a.all(), "inert attempt must not notify")
	assert.Equal(t, StateSubmitting, m.Status().State)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "7", res.token.TokenID)
	assert.Equal(t, 1, o.started)
	assert.Len(t, w.Sent(), 1)

	// The trigger is usable again once the attempt resolved.
	w.BeforeWait = nil
	_, err = m.Mint(context.Background(), sanFrancisco())
	require.NoError(t, err)
	assert.Equal(t, "attempt-2", m.Status().AttemptID)
}

func TestMint_NextAttemptDiscardsPreviousToken(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	m := newTestMinter(w, nil, nil)

	_, err := m.Mint(context.Background(), sanFrancisco())
	require.NoError(t, err)
	require.NotNil(t, m.Status().Token)

	w.SendErr = errors.New("nonce too low")
	_, err = m.Mint(context.Background(), sanFrancisco())
	require.Error(t, err)

	st := m.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Nil(t, st.Token)
	assert.Equal(t, CategoryRejected, st.LastError)
}

func TestMint_CancelAfterSubmissionStillConfirms(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 8)
	ctx, cancel := context.WithCancel(context.Background())
	var waitCtxErr error
	w.BeforeWait = func(waitCtx context.Context) {
		cancel()
		waitCtxErr = waitCtx.Err()
	}
	m := newTestMinter(w, nil, nil)

	token, err := m.Mint(ctx, sanFrancisco())
	require.NoError(t, err)
	assert.NoError(t, waitCtxErr)
	assert.Equal(t, "8", token.TokenID)
	assert.Equal(t, StateConfirmed, m.Status().State)
}

func TestMint_StaysInFlightAfterCancelUntilMined(t *testing.T) {
	w := testutil.NewScriptedWallet(testContract, 1)
	ctx, cancel := context.WithCancel(context.Background())
	entered := make(chan struct{})
	release := make(chan struct{})
	w.BeforeWait = func(context.Context) {
		cancel()
		close(entered)
		<-release
	}
	m := newTestMinter(w, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Mint(ctx, sanFrancisco())
		done <- err
	}()
	<-entered

	_, err := m.Mint(context.Background(), sanFrancisco())
	assert.ErrorIs(t, err, ErrAttemptInFlight)
	assert.True(t, m.Status().Busy())

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, w.Sent(), 1)
}

func TestStatus_InitiallyIdle(t *testing.T) {
	m := New(nil)
	st := m.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Token)
	assert.Equal(t, contract.DefaultAddress, m.Contract())
	assert.Equal(t, int64(contract.SepoliaChainID), m.ChainID().Int64())
}

func TestMint_RecordsElapsed(t *testing.T) {
	clock := testutil.NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3*time.Second)
	rec := &outcomes{}
	w := testutil.NewScriptedWallet(testContract, 1)
	m := New(w,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRecorder(rec),
		WithClock(clock.Now),
	)

	_, err := m.Mint(context.Background(), sanFrancisco())
	require.NoError(t, err)
	_, err = m.Mint(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, []string{OutcomeConfirmed, string(CategoryNoSelection)}, rec.finished)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, rec.elapsed)
}
