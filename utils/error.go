package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects a proposal before anything is written. The
// operator fixes the input and retries; nothing needs compensation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failed local-store write. It triggers saga
// compensation and is surfaced to the operator as a retryable failure.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReplicationError wraps a failed or timed-out remote upsert. The affected
// outbox rows stay PENDING and are retried on the next pass; it is never
// surfaced to the operator.
type ReplicationError struct {
	Phase string
	Err   error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication failed at phase %s: %v", e.Phase, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// CompensationError means a rollback step itself failed and local state may
// be inconsistent. Logged for administrative reconciliation; the one fatal case.
type CompensationError struct {
	TransactionId string
	Step          string
	Err           error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for transaction %s at %s: %v", e.TransactionId, e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

func IsReplication(err error) bool {
	var r *ReplicationError
	return errors.As(err, &r)
}
