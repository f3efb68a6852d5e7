package templates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mailroom/pkg/pg"
)

// Repository implements Storage over a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, userID int64) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, subject, body, created_at, updated_at
		FROM templates
		WHERE user_id = $1
		ORDER BY name ASC`, userID)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	defer rows.Close()

	list := make([]Template, 0)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Join(ErrStore, err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return list, nil
}

func (r *Repository) GetByID(ctx context.Context, id, userID int64) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, subject, body, created_at, updated_at
		FROM templates
		WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return Template{}, ErrNotFound
		}
		return Template{}, errors.Join(ErrStore, err)
	}
	return t, nil
}

func (r *Repository) Create(ctx context.Context, userID int64, name, subject, body string) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		INSERT INTO templates (user_id, name, subject, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, subject, body, created_at, updated_at`,
		userID, name, subject, body).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, errors.Join(ErrStore, err)
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, id, userID int64, name, subject, body string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE templates
		SET name = $3, subject = $4, body = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, name, subject, body)
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id, userID int64) error {
	// Deleting a row that is already gone is fine; the operation is
	// idempotent by contract.
	if _, err := r.pool.Exec(ctx, `
		DELETE FROM templates
		WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}
