package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/roach88/geomint/internal/mint"
	"github.com/roach88/geomint/internal/testutil"
)

// Scenario defines one scripted mint attempt.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// AttemptID is the fixed attempt id. Defaults to "scenario-attempt".
	AttemptID string `yaml:"attempt_id,omitempty"`

	// Contract overrides the AddressNFT address.
	Contract string `yaml:"contract,omitempty"`

	// ExpectedChainID overrides the network the minter accepts.
	ExpectedChainID int64 `yaml:"expected_chain_id,omitempty"`

	// Selection is the address to mint. Nil means nothing selected.
	Selection *SelectionSpec `yaml:"selection,omitempty"`

	// Wallet scripts the wallet. Nil means no wallet capability.
	Wallet *WalletSpec `yaml:"wallet,omitempty"`

	// Expect is the expected outcome.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SelectionSpec is the YAML form of geo.Selection.
type SelectionSpec struct {
	Address string  `yaml:"address"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
}

// WalletSpec scripts a testutil.ScriptedWallet. Zero values mean defaults.
type WalletSpec struct {
	// Accounts authorized by RequestAccounts. Defaults to testutil.DefaultOwner.
	Accounts []string `yaml:"accounts,omitempty"`

	// NoAccounts makes RequestAccounts succeed with an empty list.
	NoAccounts bool `yaml:"no_accounts,omitempty"`

	// ChainID reported by the wallet. Defaults to Sepolia.
	ChainID int64 `yaml:"chain_id,omitempty"`

	// TokenID minted by the default receipt. Defaults to 1.
	TokenID int64 `yaml:"token_id,omitempty"`

	// Errors returned by the named wallet call.
	AccountsError string `yaml:"accounts_error,omitempty"`
	ChainError    string `yaml:"chain_error,omitempty"`
	SendError     string `yaml:"send_error,omitempty"`
	WaitError     string `yaml:"wait_error,omitempty"`

	// Receipt overrides the default successful receipt.
	Receipt *ReceiptSpec `yaml:"receipt,omitempty"`
}

// ReceiptSpec describes the mined receipt.
type ReceiptSpec struct {
	// Status is 1 for success, 0 for reverted. Defaults to 1.
	Status *uint64 `yaml:"status,omitempty"`

	// Logs replaces the default mint Transfer log.
	Logs []LogSpec `yaml:"logs,omitempty"`

	// NoLogs empties the receipt's logs.
	NoLogs bool `yaml:"no_logs,omitempty"`
}

// LogSpec is a Transfer log. Contract defaults to the scenario contract and
// From to the zero address.
type LogSpec struct {
	Contract string `yaml:"contract,omitempty"`
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to"`
	TokenID  int64  `yaml:"token_id"`
}

// ExpectClause specifies the expected outcome. Exactly one of Category and
// Token is set.
type ExpectClause struct {
	// Category is the expected failure category.
	Category string `yaml:"category,omitempty"`

	// Token holds expected MintedToken fields (subset match).
	Token map[string]string `yaml:"token,omitempty"`
}

// Assertion validates the trace or the notice.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, notice.
	Type string `yaml:"type"`

	// Call is the wallet method (trace_contains, trace_count).
	Call string `yaml:"call,omitempty"`

	// Calls is the expected relative order (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the exact number of occurrences (trace_count).
	Count int `yaml:"count"`

	// Message is the expected user notice (notice).
	Message string `yaml:"message,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNotice        = "notice"
)

var knownCalls = map[string]bool{
	testutil.CallRequestAccounts: true,
	testutil.CallChainID:         true,
	testutil.CallSendTransaction: true,
	testutil.CallWaitMined:       true,
	testutil.CallContract:        true,
}

var knownCategories = map[string]bool{
	string(mint.CategoryNoSelection):      true,
	string(mint.CategoryInvalidSelection): true,
	string(mint.CategoryNoWallet):         true,
	string(mint.CategoryWrongNetwork):     true,
	string(mint.CategoryRejected):         true,
	string(mint.CategoryMissingTransfer):  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasCategory := s.Expect.Category != ""
	hasToken := len(s.Expect.Token) > 0
	if hasCategory == hasToken {
		return fmt.Errorf("expect: exactly one of category or token is required")
	}
	if hasCategory && !knownCategories[s.Expect.Category] {
		return fmt.Errorf("expect: unknown category %q", s.Expect.Category)
	}
	for field := range s.Expect.Token {
		if _, ok := tokenFields[field]; !ok {
			return fmt.Errorf("expect.token: unknown field %q", field)
		}
	}

	if s.Contract != "" && !common.IsHexAddress(s.Contract) {
		return fmt.Errorf("contract %q is not a hex address", s.Contract)
	}
	if w := s.Wallet; w != nil {
		for i, a := range w.Accounts {
			if !common.IsHexAddress(a) {
				return fmt.Errorf("wallet.accounts[%d]: %q is not a hex address", i, a)
			}
		}
		if w.Receipt != nil {
			for i, l := range w.Receipt.Logs {
				for _, addr := range []string{l.Contract, l.From, l.To} {
					if addr != "" && !common.IsHexAddress(addr) {
						return fmt.Errorf("wallet.receipt.logs[%d]: %q is not a hex address", i, addr)
					}
				}
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount:
		if !knownCalls[a.Call] {
			return fmt.Errorf("assertions[%d]: unknown wallet call %q", index, a.Call)
		}
		if a.Type == AssertTraceCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two calls", index)
		}
		for _, c := range a.Calls {
			if !knownCalls[c] {
				return fmt.Errorf("assertions[%d]: unknown wallet call %q", index, c)
			}
		}
	case AssertNotice:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for notice", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
