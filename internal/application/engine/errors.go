package engine

import "fmt"

// InfrastructureError wraps a storage or ledger failure that aborted an
// operation. Retryable distinguishes transient faults (lock contention,
// busy database) from ones a retry cannot fix.
type InfrastructureError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func infraErr(op string, err error) *InfrastructureError {
	return &InfrastructureError{Op: op, Err: err}
}
