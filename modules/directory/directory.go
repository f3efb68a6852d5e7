// Package directory serves the recipient directory the compose flow picks
// from: the users table reduced to personalization fields.
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStore = errors.New("directory: storage failure")

// Entry is one selectable recipient.
type Entry struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company"`
	JobTitle  string `json:"jobTitle,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Storage is the read contract; Repository is the pgx implementation.
type Storage interface {
	List(ctx context.Context) ([]Entry, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id,
		       coalesce(first_name, ''),
		       coalesce(last_name, ''),
		       coalesce(company, ''),
		       coalesce(job_title, ''),
		       coalesce(email, '')
		FROM users
		ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Company, &e.JobTitle, &e.Email); err != nil {
			return nil, errors.Join(ErrStore, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return entries, nil
}
