package chat

import "errors"

// Error kinds returned by the Manager. Identifier lookups fail hard with a
// distinguishable error since an unknown identifier indicates caller misuse;
// the data and chart layers underneath stay fail-soft.
var (
	// ErrNotFound reports an unknown task identifier.
	ErrNotFound = errors.New("task not found")

	// ErrNotReady reports a result request before the task completed.
	ErrNotReady = errors.New("task not complete yet")

	// ErrTimeout reports a task that exceeded its processing deadline.
	ErrTimeout = errors.New("task deadline exceeded")

	// ErrCanceled reports a task that was canceled before completion.
	ErrCanceled = errors.New("task canceled")

	// ErrInvalidInput reports an empty or malformed prompt.
	ErrInvalidInput = errors.New("invalid prompt")
)
