package action

import "errors"

var (
	// ErrContractViolation marks descriptors the daemon should never emit.
	ErrContractViolation      = errors.New("action: contract violation")
	ErrUnsupportedContentType = errors.New("action: only application/json is supported for non-GET requests")
	ErrUnsupportedMethod      = errors.New("action: unsupported method")
	ErrMissingWallet          = errors.New("action: wallet capability not configured")
)
