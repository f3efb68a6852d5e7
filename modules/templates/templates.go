// Package templates implements the template manager: named subject/body
// pairs owned by a user, reusable from the compose flow.
package templates

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound covers both a missing id and an id owned by another
	// user; callers cannot tell the two apart, so existence is not leaked.
	ErrNotFound = errors.New("templates: template not found")
	// ErrStore wraps persistence failures. The underlying cause is logged,
	// never surfaced to the operator.
	ErrStore = errors.New("templates: storage failure")
)

// Template is a named, reusable subject+body pair. Subject and body may
// contain placeholder tokens; the template store does not interpret them.
type Template struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Storage is the persistence contract the router depends on; Repository is
// the pgx implementation.
type Storage interface {
	// List returns the user's templates ordered by name ascending. No
	// templates is an empty slice, not an error.
	List(ctx context.Context, userID int64) ([]Template, error)
	// GetByID is scoped by owner and returns ErrNotFound when no row
	// matches id+userID.
	GetByID(ctx context.Context, id, userID int64) (Template, error)
	// Create persists a new template and returns it with id and
	// timestamps filled.
	Create(ctx context.Context, userID int64, name, subject, body string) (Template, error)
	// Update replaces name, subject and body wholesale and bumps the
	// modification timestamp. ErrNotFound when nothing matched.
	Update(ctx context.Context, id, userID int64, name, subject, body string) error
	// Delete is idempotent; removing a missing id succeeds.
	Delete(ctx context.Context, id, userID int64) error
}
