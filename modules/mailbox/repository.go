package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mailroom/pkg/pg"
)

// Repository implements Storage over a pgx connection pool.
//
// Multi-statement operations (SendSingle, MoveThread) intentionally run as
// separate statements without a wrapping transaction, preserving the
// behavior of the application this store was extracted from. A crash
// between MoveThread's delete and insert can leave a thread in no folder.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListFolders(ctx context.Context) ([]FolderSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.name, count(tf.thread_id)
		FROM folders f
		LEFT JOIN thread_folders tf ON tf.folder_id = f.id
		GROUP BY f.id, f.name
		ORDER BY f.id ASC`)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	defer rows.Close()

	folders := make([]FolderSummary, 0)
	for rows.Next() {
		var f FolderSummary
		if err := rows.Scan(&f.ID, &f.Name, &f.ThreadCount); err != nil {
			return nil, errors.Join(ErrStore, err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return folders, nil
}

func (r *Repository) ListThreads(ctx context.Context, folderName string) ([]ThreadSummary, error) {
	if _, err := r.folderIDByName(ctx, folderName); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.subject, t.last_activity_date, count(e.id)
		FROM threads t
		JOIN thread_folders tf ON tf.thread_id = t.id
		JOIN folders f ON f.id = tf.folder_id
		LEFT JOIN emails e ON e.thread_id = t.id
		WHERE lower(f.name) = lower($1)
		GROUP BY t.id, t.subject, t.last_activity_date
		ORDER BY t.last_activity_date DESC`, folderName)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	defer rows.Close()

	threads := make([]ThreadSummary, 0)
	for rows.Next() {
		var t ThreadSummary
		if err := rows.Scan(&t.ID, &t.Subject, &t.LastActivityDate, &t.EmailCount); err != nil {
			return nil, errors.Join(ErrStore, err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return threads, nil
}

func (r *Repository) GetThread(ctx context.Context, id int64) (Thread, error) {
	var t Thread
	err := r.pool.QueryRow(ctx, `
		SELECT id, subject, last_activity_date
		FROM threads
		WHERE id = $1`, id).
		Scan(&t.ID, &t.Subject, &t.LastActivityDate)
	if err != nil {
		if pg.IsNotFound(err) {
			return Thread{}, ErrThreadNotFound
		}
		return Thread{}, errors.Join(ErrStore, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.thread_id, e.subject, e.body, e.sent_date,
		       trim(concat(u.first_name, ' ', u.last_name)), u.email
		FROM emails e
		JOIN users u ON u.id = e.sender_id
		WHERE e.thread_id = $1
		ORDER BY e.sent_date ASC`, id)
	if err != nil {
		return Thread{}, errors.Join(ErrStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Email
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Subject, &e.Body, &e.SentDate, &e.SenderName, &e.SenderEmail); err != nil {
			return Thread{}, errors.Join(ErrStore, err)
		}
		t.Emails = append(t.Emails, e)
	}
	if err := rows.Err(); err != nil {
		return Thread{}, errors.Join(ErrStore, err)
	}
	return t, nil
}

func (r *Repository) SendSingle(ctx context.Context, senderID int64, subject, body, recipientEmail string) (Thread, error) {
	recipientID, err := r.userIDByEmail(ctx, recipientEmail)
	if err != nil {
		return Thread{}, err
	}

	sentFolderID, err := r.folderIDByName(ctx, FolderSent)
	if errors.Is(err, ErrFolderNotFound) {
		return Thread{}, ErrSentFolderMissing
	} else if err != nil {
		return Thread{}, err
	}

	now := time.Now()

	var t Thread
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO threads (subject, last_activity_date)
		VALUES ($1, $2)
		RETURNING id, subject, last_activity_date`, subject, now).
		Scan(&t.ID, &t.Subject, &t.LastActivityDate); err != nil {
		return Thread{}, errors.Join(ErrStore, err)
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO emails (thread_id, sender_id, recipient_id, subject, body, sent_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, senderID, recipientID, subject, body, now); err != nil {
		return Thread{}, errors.Join(ErrStore, err)
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO thread_folders (thread_id, folder_id)
		VALUES ($1, $2)`, t.ID, sentFolderID); err != nil {
		return Thread{}, errors.Join(ErrStore, err)
	}

	return t, nil
}

func (r *Repository) MoveThread(ctx context.Context, threadID int64, folderName string) error {
	folderID, err := r.folderIDByName(ctx, folderName)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `
		DELETE FROM thread_folders WHERE thread_id = $1`, threadID); err != nil {
		return errors.Join(ErrStore, err)
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO thread_folders (thread_id, folder_id)
		VALUES ($1, $2)`, threadID, folderID); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// userIDByEmail returns the user row for the address, creating one on the
// fly for previously unseen recipients.
func (r *Repository) userIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !pg.IsNotFound(err) {
		return 0, errors.Join(ErrStore, err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&id)
	if err != nil {
		// A concurrent insert of the same address can win the race;
		// fall back to reading the existing row.
		if pg.IsUniqueViolation(err) {
			if lookupErr := r.pool.QueryRow(ctx, `
				SELECT id FROM users WHERE email = $1`, email).Scan(&id); lookupErr == nil {
				return id, nil
			}
		}
		return 0, errors.Join(ErrStore, err)
	}
	return id, nil
}

func (r *Repository) folderIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM folders WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		if pg.IsNotFound(err) {
			return 0, ErrFolderNotFound
		}
		return 0, errors.Join(ErrStore, err)
	}
	return id, nil
}
