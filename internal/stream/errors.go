package stream

import "errors"

var (
	// ErrInvalidAddress is returned synchronously by Connect and Reconfigure.
	ErrInvalidAddress = errors.New("invalid stream address")
	// ErrPeerClosed ends a receive loop after the server sent a close frame.
	ErrPeerClosed = errors.New("peer closed the connection")
	// ErrSuperseded ends a receive loop whose generation is no longer live.
	ErrSuperseded = errors.New("connection generation superseded")
	// ErrHealthCheck is the teardown cause when a ping could not be written.
	ErrHealthCheck = errors.New("health check failed")
	// ErrReconnectRequested is the teardown cause of an explicit Reconnect.
	ErrReconnectRequested = errors.New("reconnect requested")
)
