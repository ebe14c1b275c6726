package pipeline

import "errors"

// Configuration errors. All of them are detected while a pipeline is being
// built, before any pipe runs.
var (
	ErrUnknownKind        = errors.New("unknown kind")
	ErrDuplicateKind      = errors.New("kind already registered")
	ErrUnknownContainer   = errors.New("unknown container")
	ErrDuplicateContainer = errors.New("duplicate container name")
	ErrContainerType      = errors.New("container type mismatch")
	ErrArityMismatch      = errors.New("container binding arity mismatch")
)
