package common

import (
	"errors"
	"fmt"
)

// ErrNoStableIdentity signals that a profile payload carried none of the
// identity fields, so the resolver synthesized a random key. It is a warning:
// the key is still usable, but the node can never be deduplicated against a
// future ingestion of the same person.
var ErrNoStableIdentity = errors.New("profile has no stable identity")

// ErrConvergenceTimeout signals that a scorer run was forced to stop
// iterating before reaching the convergence tolerance. The normalized scores
// computed so far are still persisted.
var ErrConvergenceTimeout = errors.New("rank iteration stopped before convergence")

// InvalidEdgeError rejects a malformed edge pair before anything is written.
type InvalidEdgeError struct {
	From string
	To   string
	Why  string
}

func (e *InvalidEdgeError) Error() string {
	return fmt.Sprintf("invalid edge %s -> %s: %s", e.From, e.To, e.Why)
}

// PersistenceError wraps a failed write or read against the graph store.
// Callers retry at batch-item granularity; the failure is never silently
// dropped.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
