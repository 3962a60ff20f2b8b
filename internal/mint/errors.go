package mint

import (
	"errors"
	"fmt"
)

// ErrAttemptInFlight is returned when Mint is called while another attempt
// is unresolved. The call has no side effects: it is not queued, does not
// notify, and does not touch the wallet.
var ErrAttemptInFlight = errors.New("a mint attempt is already in flight")

// Category classifies why a mint attempt failed. Every category is terminal
// for the attempt; none is retried.
type Category string

const (
	// CategoryNoSelection indicates no address was selected.
	CategoryNoSelection Category = "no_selection"

	// CategoryInvalidSelection indicates the selection has blank text or
	// coordinates outside WGS 84 bounds.
	CategoryInvalidSelection Category = "invalid_selection"

	// CategoryNoWallet indicates no wallet capability is available.
	CategoryNoWallet Category = "no_wallet"

	// CategoryWrongNetwork indicates the wallet is connected to a network
	// other than the expected one.
	CategoryWrongNetwork Category = "wrong_network"

	// CategoryRejected indicates the wallet or the contract refused the
	// request: authorization declined, submission failed, or the
	// transaction reverted.
	CategoryRejected Category = "rejected"

	// CategoryMissingTransfer indicates a confirmed transaction whose logs
	// carry no Transfer event. Treated as an unrecoverable inconsistency.
	CategoryMissingTransfer Category = "missing_transfer_event"
)

// notices are the end-user messages, one per category. Diagnostic detail
// never goes here.
var notices = map[Category]string{
	CategoryNoSelection:      "Please select an address first.",
	CategoryInvalidSelection: "The selected address cannot be minted. Please pick another point.",
	CategoryNoWallet:         "No wallet is available. Configure a signing key to use this feature.",
	CategoryWrongNetwork:     "Please connect to the Sepolia network.",
	CategoryRejected:         "Error generating NFT. Please check the logs for more details.",
	CategoryMissingTransfer:  "Error generating NFT. Please check the logs for more details.",
}

// Notice returns the user-facing message for c.
func (c Category) Notice() string {
	if n, ok := notices[c]; ok {
		return n
	}
	return "Error generating NFT."
}

// Error is a failed mint attempt.
type Error struct {
	// Category classifies the failure.
	Category Category

	// Message is a developer-facing description.
	Message string

	// AttemptID correlates the failure with log lines.
	AttemptID string

	// TxHash is set when the failure happened after submission.
	TxHash string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Category, e.Message)
	if e.TxHash != "" {
		msg += fmt.Sprintf(" (tx=%s)", e.TxHash)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Notice returns the end-user message for this failure.
func (e *Error) Notice() string {
	return e.Category.Notice()
}

// CategoryOf extracts the failure category from err.
// Uses errors.As to handle wrapped errors.
func CategoryOf(err error) (Category, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Category, true
	}
	return "", false
}

// IsCategory reports whether err is a mint failure of category c.
func IsCategory(err error, c Category) bool {
	got, ok := CategoryOf(err)
	return ok && got == c
}

// IncompleteSelection reports a selection rejected before any attempt was
// started, such as one from geo.Resolve missing a field. It carries no
// attempt id.
func IncompleteSelection(cause error) *Error {
	return newError(CategoryInvalidSelection, "", "selection is incomplete", cause)
}

func newError(c Category, attemptID, message string, cause error) *Error {
	return &Error{Category: c, Message: message, AttemptID: attemptID, Err: cause}
}
