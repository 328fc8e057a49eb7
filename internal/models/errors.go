package models

// InvariantViolationError rejects a write that would break a cross-entity
// invariant. It is raised before commit; the offending state is never
// persisted.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return "invariant " + e.Invariant + " violated: " + e.Detail
}
