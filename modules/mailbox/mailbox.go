// Package mailbox implements folders, threads and emails: listing,
// thread detail, folder moves and the single-recipient send path.
package mailbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrThreadNotFound = errors.New("mailbox: thread not found")
	// ErrFolderNotFound means the target folder name has no row.
	ErrFolderNotFound = errors.New("mailbox: folder not found")
	// ErrSentFolderMissing means the seeded "Sent" folder is absent; the
	// deployment is misconfigured rather than the request being wrong.
	ErrSentFolderMissing = errors.New("mailbox: sent folder is not configured")
	ErrStore             = errors.New("mailbox: storage failure")
)

// Folder names referenced by the move and send flows. The full set is
// seeded by migrations.
const (
	FolderSent    = "Sent"
	FolderArchive = "Archive"
	FolderTrash   = "Trash"
)

// ThreadSummary is a row in a folder's thread list.
type ThreadSummary struct {
	ID               int64     `json:"id"`
	Subject          string    `json:"subject"`
	LastActivityDate time.Time `json:"lastActivityDate"`
	EmailCount       int       `json:"emailCount"`
}

// Thread is the detail view: the subject line plus every email in sent
// order. A thread belongs to exactly one folder at a time.
type Thread struct {
	ID               int64     `json:"id"`
	Subject          string    `json:"subject"`
	LastActivityDate time.Time `json:"lastActivityDate"`
	Emails           []Email   `json:"emails"`
}

// Email is one message within a thread, with the sender denormalized for
// display.
type Email struct {
	ID          int64     `json:"id"`
	ThreadID    int64     `json:"threadId"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	SentDate    time.Time `json:"sentDate"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
}

// FolderSummary is a sidebar entry.
type FolderSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ThreadCount int    `json:"threadCount"`
}

// Storage is the persistence contract; Repository is the pgx
// implementation.
type Storage interface {
	ListFolders(ctx context.Context) ([]FolderSummary, error)
	// ListThreads returns the folder's threads newest activity first.
	// ErrFolderNotFound when the folder name has no row.
	ListThreads(ctx context.Context, folderName string) ([]ThreadSummary, error)
	GetThread(ctx context.Context, id int64) (Thread, error)
	// SendSingle looks up or creates the recipient user row by email,
	// inserts a thread with the current time as last activity, one email
	// row sent by senderID, and files the thread into the Sent folder.
	SendSingle(ctx context.Context, senderID int64, subject, body, recipientEmail string) (Thread, error)
	// MoveThread replaces the thread's folder membership: every existing
	// membership row is deleted, then a single row for the target folder
	// is inserted. The two statements are not atomic.
	MoveThread(ctx context.Context, threadID int64, folderName string) error
}
