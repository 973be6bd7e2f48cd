package boundary

import "errors"

var (
	// ErrAuthorization means the token failed the verifier's format check.
	ErrAuthorization = errors.New("authorization token rejected")

	// ErrAlreadyInitialized means Initialize ran twice on one engine.
	ErrAlreadyInitialized = errors.New("boundary already initialized")

	// ErrNotInitialized means Seal was called before Initialize.
	ErrNotInitialized = errors.New("boundary not initialized")

	// ErrAlreadySealed means Seal ran twice. Sealing succeeds exactly once.
	ErrAlreadySealed = errors.New("boundary already sealed")

	// ErrNotSealed means a sealed engine was required.
	ErrNotSealed = errors.New("boundary not sealed")
)
