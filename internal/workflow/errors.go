package workflow

import "errors"

var (
	// ErrInvalidInput reports missing or blank required user input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrResponder reports a failed persona call. Session state is unchanged
	// apart from entries recorded before the call.
	ErrResponder = errors.New("responder failed")
	// ErrGuard reports an action that the current stage does not allow or
	// whose prerequisite artifact is missing.
	ErrGuard = errors.New("action not allowed")
	// ErrNotInitialized reports an action on a session that was never set up.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrAlreadyInitialized reports a second setup without a reset.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrNoDatasets reports a setup where no uploaded file could be parsed.
	ErrNoDatasets = errors.New("no dataset could be parsed")
)
