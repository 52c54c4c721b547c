package domain

import "errors"

// Error taxonomy shared by the engine and the HTTP layer. Operations wrap
// these sentinels with context via fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound marks a referenced project, standard, criterion, workflow,
	// instance or step that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input: bad rule or workflow structure,
	// out-of-range scores, weights or probabilities.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a mutating call with no actor identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvariant marks a rejected state change: a duplicate active workflow
	// instance, completing a step on a non-active instance, or escalating a
	// step with no escalation target.
	ErrInvariant = errors.New("invariant violation")
)
