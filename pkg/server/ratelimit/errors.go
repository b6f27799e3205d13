package ratelimit

import "errors"

var (
	// ErrInvalidQuota indicates that the per-minute quota is not positive.
	ErrInvalidQuota = errors.New("quota must be positive")
)
