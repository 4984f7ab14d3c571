package gateway

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrNotConfigured = errors.New("gateway_not_configured")
	ErrSourceRead    = errors.New("source_read")
)
