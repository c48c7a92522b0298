package entity

import "errors"

// Failure classes used across the pipeline. Parse and lookup failures are
// recoverable; decryption and validation failures are surfaced to callers.
var (
	ErrParseFailure   = errors.New("log line did not match any known pattern")
	ErrUnknownSource  = errors.New("unknown source type")
	ErrLookupFailure  = errors.New("geolocation lookup failed")
	ErrDecryptFailure = errors.New("secret decryption failed")
	ErrNotFound       = errors.New("not found")

	// ErrTriggerConflict means an overlapping sweep recorded a rule's
	// trigger first; the losing writer must not bump the bookkeeping.
	ErrTriggerConflict = errors.New("trigger already recorded")
)
