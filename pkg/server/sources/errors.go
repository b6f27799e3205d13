package sources

import "errors"

var (
	// ErrRateLimited indicates an HTTP 429 from the upstream.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUpstreamStatus indicates a retryable upstream server error (5xx).
	ErrUpstreamStatus = errors.New("upstream server error")
	// ErrPermanentStatus indicates a non-retryable HTTP status (4xx other than 429).
	ErrPermanentStatus = errors.New("permanent upstream error")
	// ErrInvalidResponse indicates a response body that failed to decode.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrRetriesExhausted indicates that all retry attempts failed.
	ErrRetriesExhausted = errors.New("all retry attempts failed")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownSource indicates a source name with no registered factory.
	ErrUnknownSource = errors.New("unknown source")
)
