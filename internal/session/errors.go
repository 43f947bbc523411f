package session

import "errors"

// Domain errors for the session package.
var (
	// ErrConnectFailed is returned by ConnectWait when the connect attempt
	// ends in the Disconnected state, whatever the cause.
	ErrConnectFailed = errors.New("session: failed to connect to the broker")

	// ErrNotConfigured is returned when an operation needs a broker client
	// and Configure has not been called.
	ErrNotConfigured = errors.New("session: broker not configured")

	// ErrClosed is returned by ConnectWait after Close.
	ErrClosed = errors.New("session: manager closed")
)
