package persona

import (
	"context"
	"errors"
	"fmt"
)

// ErrProtectedResource marks an attempt to delete a built-in persona.
var ErrProtectedResource = errors.New("persona is protected")

// ErrNameRequired is returned when saving a persona without a name.
var ErrNameRequired = errors.New("persona name is required")

// ProtectedResourceError names the built-in persona that could not be deleted.
type ProtectedResourceError struct {
	ID string
}

func (e *ProtectedResourceError) Error() string {
	return fmt.Sprintf("cannot delete built-in persona %q", e.ID)
}

func (e *ProtectedResourceError) Unwrap() error { return ErrProtectedResource }

// Store exposes persona retrieval and management for services and HTTP handlers.
type Store interface {
	List(ctx context.Context) []Profile
	// Get never fails: unknown ids resolve to DefaultID, then to the first available profile.
	Get(ctx context.Context, id string) Profile
	// Lookup reports whether id exists without falling back.
	Lookup(ctx context.Context, id string) (Profile, bool)
	Save(ctx context.Context, profile Profile) (Profile, error)
	Delete(ctx context.Context, id string) error
}
