package authz

import "errors"

var (
	// ErrUnauthorized means the subject holds no role that permits the
	// requested action. Callers must deny; never render privileged data.
	ErrUnauthorized = errors.New("authz: unauthorized")

	// ErrInvalidInput marks malformed identifiers or role values.
	ErrInvalidInput = errors.New("authz: invalid input")

	// ErrElevatedCredential means the elevated-trust store rejected its
	// credential. The resolver treats it as a signal to fall back to the
	// subject-scoped store; every other store failure propagates.
	ErrElevatedCredential = errors.New("authz: elevated credential rejected")
)
