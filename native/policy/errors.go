package policy

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not the orchestrator (for
	// Rebase) or the admin (for parameter setters).
	ErrUnauthorized = errors.New("policy: unauthorized")
	// ErrNotInWindow is returned when Rebase is attempted outside the window.
	ErrNotInWindow = errors.New("policy: not in rebase window")
	// ErrTooSoon is returned when the minimum interval has not elapsed.
	ErrTooSoon = errors.New("policy: rebase too soon")
	// ErrInvalidParameter is returned when a setter argument fails validation.
	ErrInvalidParameter = errors.New("policy: invalid parameter")
	// ErrArithmeticOverflow signals a delta outside the signed delta range.
	// It indicates a configuration or type-width bug and is not retryable.
	ErrArithmeticOverflow = errors.New("policy: arithmetic overflow")
	// ErrSupplyInvariant is returned when the ledger reports a total supply
	// above MaxSupply after applying a rebase.
	ErrSupplyInvariant = errors.New("policy: supply invariant violated")
	// ErrNotInitialised is returned when the engine has no ledger bound.
	ErrNotInitialised = errors.New("policy: engine not initialised")
)
