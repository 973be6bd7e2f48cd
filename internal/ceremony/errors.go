package ceremony

import "errors"

var (
	// ErrUnauthorized rejects a swear attempt by an unrecognized principal
	// or with a token that fails verification.
	ErrUnauthorized = errors.New("ceremony: unauthorized")

	// ErrAlreadySworn is returned when Swear is called twice.
	ErrAlreadySworn = errors.New("ceremony: covenant already sworn")

	// ErrNotSworn is returned by Seal before a completed Swear.
	ErrNotSworn = errors.New("ceremony: covenant not sworn")

	// ErrAlreadySealed is returned when Seal is called twice.
	ErrAlreadySealed = errors.New("ceremony: already sealed")

	// ErrNotSealed is returned by ExportCertificate before sealing.
	ErrNotSealed = errors.New("ceremony: not sealed")

	// ErrProtectionNotSealed means the owned policy engine was not sealed
	// when activation ran. The assertion guards against a substituted
	// engine slipping past the ceremony.
	ErrProtectionNotSealed = errors.New("ceremony: policy engine not sealed at activation")

	// ErrSealedCannotWitness rejects witnesses after sealing.
	ErrSealedCannotWitness = errors.New("ceremony: sealed covenant cannot take witnesses")
)
