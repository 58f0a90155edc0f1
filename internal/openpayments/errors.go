package openpayments

import "errors"

var (
	// ErrEndpointUnreachable wraps network or protocol failures while
	// describing a wallet endpoint.
	ErrEndpointUnreachable = errors.New("wallet endpoint unreachable")

	// ErrGrantNotYetAuthorized means the user has not completed the
	// consent redirect. Expected and recoverable while polling.
	ErrGrantNotYetAuthorized = errors.New("grant not yet authorized")

	// ErrGrantContinuation wraps protocol-level continuation failures.
	ErrGrantContinuation = errors.New("grant continuation failed")

	// ErrResourceCreation wraps failures creating incoming payments,
	// quotes or outgoing payments.
	ErrResourceCreation = errors.New("resource creation failed")
)
