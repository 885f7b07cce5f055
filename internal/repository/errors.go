package repository

import "errors"

var (
	// ErrChannelNotConfigured means no (tenant, channel) config row exists.
	// The dispatcher treats it as "not configured", never as an error.
	ErrChannelNotConfigured = errors.New("channel is not configured for tenant")

	// ErrTenantNotFound means the tenant row itself is missing.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrJobNotFound means no job row matches the lookup.
	ErrJobNotFound = errors.New("job not found")

	// ErrResultNotReady means no aggregated result has been committed yet.
	ErrResultNotReady = errors.New("job result is not ready")
)
