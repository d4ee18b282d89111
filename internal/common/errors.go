// Package common defines shared constants and sentinel errors used across
// AirCater components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStorage marks a local persistence failure (quota, corruption, I/O).
	// It is fatal for the affected operation only; the queued mutation stays
	// in place so the operation can be retried once storage recovers.
	ErrStorage = errors.New("local storage failure")

	// ErrTransientNetwork marks a remote failure worth retrying with backoff:
	// connection errors, timeouts and 5xx-class responses.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrVersionConflict means the server holds a newer revision than the one
	// a pending update was based on. Never retried automatically; routed to
	// the conflict resolver.
	ErrVersionConflict = errors.New("version conflict")

	// ErrRejected marks a non-retryable server rejection (4xx validation
	// class). The item fails terminally without spending retry budget.
	ErrRejected = errors.New("request rejected by server")

	// ErrTerminalSync means the retry budget is exhausted. The item stays
	// queued and requires explicit user action (retry or discard).
	ErrTerminalSync = errors.New("sync retry budget exhausted")

	// Auth errors surfaced by the API client.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrTokenExpired   = errors.New("token expired")
)
