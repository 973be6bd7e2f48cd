package guardian

import "errors"

var (
	// ErrNotSealed is returned by Start when the policy engine has not
	// been sealed yet.
	ErrNotSealed = errors.New("guardian: policy engine is not sealed")

	// ErrAlreadyActive is returned by Start on a running guardian.
	ErrAlreadyActive = errors.New("guardian: already active")

	// ErrAlreadyStopped is returned on a stopped guardian. STOPPED is
	// terminal; a fresh instance is required to resume monitoring.
	ErrAlreadyStopped = errors.New("guardian: already stopped")

	// ErrNotActive is returned by Stop when the guardian never started.
	ErrNotActive = errors.New("guardian: not active")
)
