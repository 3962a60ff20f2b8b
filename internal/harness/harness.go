package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/mint"
	"github.com/roach88/geomint/internal/testutil"
	"github.com/roach88/geomint/internal/wallet"
)

// DefaultAttemptID is used when a scenario sets none, so golden files are
// stable.
const DefaultAttemptID = "scenario-attempt"

// tokenFields maps expect.token keys to MintedToken fields.
var tokenFields = map[string]func(*mint.MintedToken) string{
	"token_id":         func(t *mint.MintedToken) string { return t.TokenID },
	"owner":            func(t *mint.MintedToken) string { return t.Owner },
	"address":          func(t *mint.MintedToken) string { return t.Address },
	"transaction_hash": func(t *mint.MintedToken) string { return t.TransactionHash },
}

// Run executes a scenario and returns the result. Mismatches with the
// scenario's expectations are reported in Result.Errors; the returned error
// is reserved for scenarios that cannot be executed. A nil logger discards
// minter logs.
func Run(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("scenario is nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	contractAddr := contract.DefaultAddress
	if scenario.Contract != "" {
		contractAddr = common.HexToAddress(scenario.Contract)
	}
	attemptID := scenario.AttemptID
	if attemptID == "" {
		attemptID = DefaultAttemptID
	}

	result := NewResult()
	opts := []mint.Option{
		mint.WithContract(contractAddr),
		mint.WithLogger(logger.With("scenario", scenario.Name)),
		mint.WithAttemptIDs(mint.NewFixedGenerator(attemptID)),
		mint.WithNotifier(mint.NotifierFunc(func(msg string) {
			result.Notices = append(result.Notices, msg)
		})),
	}
	if scenario.ExpectedChainID != 0 {
		opts = append(opts, mint.WithChainID(big.NewInt(scenario.ExpectedChainID)))
	}

	var sw *testutil.ScriptedWallet
	var minter *mint.Minter
	if scenario.Wallet != nil {
		sw = buildWallet(scenario.Wallet, contractAddr)
		minter = mint.New(sw, opts...)
	} else {
		minter = mint.New(nil, opts...)
	}

	var sel *geo.Selection
	if s := scenario.Selection; s != nil {
		sel = &geo.Selection{Address: s.Address, Lat: s.Lat, Lng: s.Lng}
	}

	token, mintErr := minter.Mint(ctx, sel)
	if mintErr != nil && !errors.As(mintErr, new(*mint.Error)) {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, mintErr)
	}

	if sw != nil {
		if err := traceCalls(result, sw); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}
	result.Trace = append(result.Trace, outcomeEvent(int64(len(result.Trace)+1), token, mintErr))

	checkExpect(result, scenario.Expect, token, mintErr)
	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// buildWallet turns a WalletSpec into a ScriptedWallet.
func buildWallet(spec *WalletSpec, contractAddr common.Address) *testutil.ScriptedWallet {
	tokenID := spec.TokenID
	if tokenID == 0 {
		tokenID = 1
	}
	w := testutil.NewScriptedWallet(contractAddr, tokenID)

	if len(spec.Accounts) > 0 {
		w.Accounts = make([]common.Address, len(spec.Accounts))
		for i, a := range spec.Accounts {
			w.Accounts[i] = common.HexToAddress(a)
		}
		w.Receipt = testutil.MintReceipt(contractAddr, w.Accounts[0], tokenID, testutil.DefaultTxHash)
	}
	if spec.NoAccounts {
		w.Accounts = nil
	}
	if spec.ChainID != 0 {
		w.Chain = big.NewInt(spec.ChainID)
	}
	w.AccountsErr = errorOrNil(spec.AccountsError)
	w.ChainErr = errorOrNil(spec.ChainError)
	w.SendErr = errorOrNil(spec.SendError)
	w.WaitErr = errorOrNil(spec.WaitError)

	if r := spec.Receipt; r != nil {
		if r.Status != nil {
			w.Receipt.Status = *r.Status
		}
		switch {
		case r.NoLogs:
			w.Receipt.Logs = nil
		case len(r.Logs) > 0:
			logs := make([]*types.Log, len(r.Logs))
			for i, l := range r.Logs {
				emitter := contractAddr
				if l.Contract != "" {
					emitter = common.HexToAddress(l.Contract)
				}
				logs[i] = testutil.TransferLog(emitter, common.HexToAddress(l.From), common.HexToAddress(l.To), l.TokenID)
			}
			w.Receipt.Logs = logs
		}
	}
	return w
}

func errorOrNil(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// traceCalls records the wallet calls, decoding mintNFT arguments for each
// submission.
func traceCalls(result *Result, w *testutil.ScriptedWallet) error {
	sent := w.Sent()
	next := 0
	for i, call := range w.Calls() {
		event := TraceEvent{Seq: int64(i + 1), Type: EventCall, Call: call}
		if call == testutil.CallSendTransaction && next < len(sent) {
			args, err := mintArgs(sent[next])
			if err != nil {
				return err
			}
			event.Args = args
			next++
		}
		result.Trace = append(result.Trace, event)
	}
	return nil
}

func mintArgs(call wallet.Call) (map[string]any, error) {
	method := contract.AddressNFT.Methods[contract.MethodMint]
	if len(call.Data) < 4 {
		return nil, fmt.Errorf("submitted calldata too short: %d bytes", len(call.Data))
	}
	values, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("decode submitted mintNFT call: %w", err)
	}
	recipient, _ := values[0].(common.Address)
	text, _ := values[1].(string)
	lat, _ := values[2].(*big.Int)
	lon, _ := values[3].(*big.Int)
	if lat == nil || lon == nil {
		return nil, errors.New("decode submitted mintNFT call: missing coordinates")
	}
	return map[string]any{
		"from":         call.From.Hex(),
		"to":           call.To.Hex(),
		"recipient":    recipient.Hex(),
		"address_text": text,
		"lat":          lat.Int64(),
		"lon":          lon.Int64(),
	}, nil
}

func outcomeEvent(seq int64, token *mint.MintedToken, err error) TraceEvent {
	event := TraceEvent{Seq: seq, Type: EventOutcome}
	if err != nil {
		var me *mint.Error
		errors.As(err, &me)
		event.Outcome = string(me.Category)
		event.Notice = me.Notice()
		return event
	}
	event.Outcome = mint.OutcomeConfirmed
	event.Token = make(map[string]any, len(tokenFields))
	for name, get := range tokenFields {
		event.Token[name] = get(token)
	}
	return event
}

func checkExpect(result *Result, expect ExpectClause, token *mint.MintedToken, err error) {
	if expect.Category != "" {
		got, ok := mint.CategoryOf(err)
		switch {
		case !ok:
			result.AddError(fmt.Sprintf("expected failure %s, got success (token %s)", expect.Category, token.TokenID))
		case string(got) != expect.Category:
			result.AddError(fmt.Sprintf("expected failure %s, got %s", expect.Category, got))
		}
		if token != nil {
			result.AddError("failed attempt produced a token")
		}
		return
	}

	if err != nil {
		result.AddError(fmt.Sprintf("expected success, got %v", err))
		return
	}
	for field, want := range expect.Token {
		if got := tokenFields[field](token); got != want {
			result.AddError(fmt.Sprintf("token.%s: expected %q, got %q", field, want, got))
		}
	}
}
