package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the engine. Callers classify failures with errors.Is;
// wrapped messages carry the entity kind and id.
//
// Policy: ErrNotInitialized and ErrInvalidCriteria are programmer errors and
// propagate immediately. ErrNotFound propagates from mutations but queries
// return empty results instead. ErrPersistence propagates from writes;
// reads degrade to empty results with the failure logged. ErrCollaborator
// degrades to the last good snapshot during knowledge refresh.
var (
	ErrNotInitialized  = errors.New("intelligence engine not initialized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidCriteria = errors.New("invalid criteria")
	ErrPersistence     = errors.New("persistence failure")
	ErrCollaborator    = errors.New("collaborator failure")
	ErrSessionFinal    = errors.New("session already finalized")
)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// PersistenceError wraps a storage failure for a given operation.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// CollaboratorError wraps an external collaborator failure.
func CollaboratorError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCollaborator, name, err)
}
