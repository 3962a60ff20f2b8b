package wallet

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Diagnostics is developer-facing detail extracted from a provider error.
// It is logged, never shown to the end user.
type Diagnostics struct {
	Code   int    // JSON-RPC error code, 0 if absent
	Reason string // decoded revert reason, if any
	Data   string // raw error data, if any
}

// Attrs renders the non-empty fields as slog key/value pairs.
func (d Diagnostics) Attrs() []any {
	var attrs []any
	if d.Code != 0 {
		attrs = append(attrs, "code", d.Code)
	}
	if d.Reason != "" {
		attrs = append(attrs, "reason", d.Reason)
	}
	if d.Data != "" {
		attrs = append(attrs, "data", d.Data)
	}
	return attrs
}

// Diagnose extracts the JSON-RPC code and revert data from err.
func Diagnose(err error) Diagnostics {
	var d Diagnostics
	if err == nil {
		return d
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		d.Code = rpcErr.ErrorCode()
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		switch data := dataErr.ErrorData().(type) {
		case string:
			d.Data = data
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					d.Reason = reason
				}
			}
		case nil:
		default:
			if s, ok := data.(interface{ String() string }); ok {
				d.Data = s.String()
			}
		}
	}
	return d
}
