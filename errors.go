package loreforge

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound reports a missing record. Surfaced to callers as a
// client-visible "not found"; never fatal to the process.
type ErrNotFound struct {
	Kind string // "campaign", "document", "source", "version"
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Kind, e.ID)
}

// ErrConflict reports a request that cannot be satisfied because the state
// already exists, e.g. assigning a source that is already assigned to the
// campaign. Distinct from ErrNotFound so callers can tell "already
// satisfied" from "failed".
type ErrConflict struct {
	Kind   string
	Detail string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// ErrLLM reports a provider-side failure (generation, embedding, cache).
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP carries an HTTP status for transient-error classification
// (429/503 are retryable). RetryAfter holds the server's Retry-After
// header when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value, either delay-seconds
// or an HTTP-date. Returns 0 when the value is empty or unparseable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
