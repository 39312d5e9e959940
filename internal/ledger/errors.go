package ledger

import "errors"

var (
	ErrUnsupportedAction = errors.New("ledger: action not supported")
	ErrNetworkMismatch   = errors.New("ledger: network mismatch")
	ErrMissingKey        = errors.New("ledger: payload missing required key")
	ErrInvalidPayload    = errors.New("ledger: invalid payload value")
	ErrMissingCapability = errors.New("ledger: wallet capability not configured")
	ErrTransactionFailed = errors.New("ledger: transaction failed")
)
