package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mailroom/pkg/binder"
	"github.com/dmitrymomot/mailroom/pkg/email"
	"github.com/dmitrymomot/mailroom/pkg/environment"
	"github.com/dmitrymomot/mailroom/pkg/handler"
	"github.com/dmitrymomot/mailroom/pkg/logger"
)

// Service exposes folder/thread browsing plus the two mutations: send and
// move. Send and move are rejected in production; this mirrors the
// environment gate of the original deployment, not a permission model.
type Service struct {
	storage Storage
	sender  email.Sender
	userID  int64
	log     *slog.Logger
}

func NewService(storage Storage, sender email.Sender, userID int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{storage: storage, sender: sender, userID: userID, log: log}
}

// Handle mounts:
//
//	GET  /folders                 — sidebar folder list with counts
//	GET  /folders/{name}/threads  — threads in a folder, newest first
//	GET  /threads/{id}            — thread detail with ordered emails
//	POST /threads/{id}/move       — refile the thread (Archive/Trash)
//	POST /send                    — single-recipient send
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/folders", handler.Wrap(s.listFolders))
	r.Get("/folders/{name}/threads", handler.Wrap(s.listThreads, binder.Path()))
	r.Get("/threads/{id}", handler.Wrap(s.getThread, binder.Path()))
	r.Post("/threads/{id}/move", handler.Wrap(s.moveThread, binder.Path(), binder.JSON()))
	r.Post("/send", handler.Wrap(s.send, binder.JSON()))
	return r
}

func (s *Service) listFolders(ctx context.Context, _ struct{}) handler.Response {
	folders, err := s.storage.ListFolders(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list folders", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}
	return handler.JSON(folders)
}

type folderRequest struct {
	Name string `path:"name"`
}

func (s *Service) listThreads(ctx context.Context, req folderRequest) handler.Response {
	threads, err := s.storage.ListThreads(ctx, req.Name)
	if err != nil {
		return s.storageError(ctx, "failed to list threads", err)
	}
	return handler.JSON(threads)
}

type threadIDRequest struct {
	ID int64 `path:"id"`
}

func (s *Service) getThread(ctx context.Context, req threadIDRequest) handler.Response {
	thread, err := s.storage.GetThread(ctx, req.ID)
	if err != nil {
		return s.storageError(ctx, "failed to load thread", err)
	}
	return handler.JSON(thread)
}

type moveThreadRequest struct {
	ID     int64  `path:"id" json:"-"`
	Folder string `json:"folder"`
}

func (s *Service) moveThread(ctx context.Context, req moveThreadRequest) handler.Response {
	if environment.IsProduction(ctx) {
		return handler.JSONError(handler.ErrForbidden)
	}
	if strings.TrimSpace(req.Folder) == "" {
		return handler.JSONError(handler.NewValidationError("folder", "Target folder is required"))
	}

	if err := s.storage.MoveThread(ctx, req.ID, req.Folder); err != nil {
		return s.storageError(ctx, "failed to move thread", err)
	}
	return handler.JSON(map[string]bool{"moved": true})
}

type sendRequest struct {
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	RecipientEmail string `json:"recipientEmail"`
}

func (r sendRequest) validate() error {
	errs := handler.ValidationError{}
	if strings.TrimSpace(r.Subject) == "" {
		errs["subject"] = append(errs["subject"], "Subject is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		errs["body"] = append(errs["body"], "Body is required")
	}
	if !email.IsValidAddress(r.RecipientEmail) {
		errs["recipientEmail"] = append(errs["recipientEmail"], "Invalid email address")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Service) send(ctx context.Context, req sendRequest) handler.Response {
	if environment.IsProduction(ctx) {
		return handler.JSONError(handler.ErrForbidden)
	}
	if err := req.validate(); err != nil {
		return handler.JSONError(err)
	}

	thread, err := s.storage.SendSingle(ctx, s.userID, req.Subject, req.Body, req.RecipientEmail)
	if err != nil {
		if errors.Is(err, ErrSentFolderMissing) {
			s.log.ErrorContext(ctx, "sent folder missing, check migrations", logger.Error(err))
			return handler.JSONError(handler.ErrInternal)
		}
		return s.storageError(ctx, "failed to send email", err)
	}

	// Delivery is best effort: the thread is already persisted, and the
	// DevSender outside production only archives a copy on disk.
	if s.sender != nil {
		if err := s.sender.Send(ctx, email.SendParams{
			To:       req.RecipientEmail,
			Subject:  req.Subject,
			BodyHTML: strings.ReplaceAll(req.Body, "\n", "<br />"),
			Tag:      "single-send",
		}); err != nil {
			s.log.ErrorContext(ctx, "outbound delivery failed", logger.Error(err))
		}
	}

	return handler.JSONWithStatus(thread, http.StatusCreated)
}

func (s *Service) storageError(ctx context.Context, msg string, err error) handler.Response {
	if errors.Is(err, ErrThreadNotFound) || errors.Is(err, ErrFolderNotFound) {
		return handler.JSONError(handler.ErrNotFound)
	}
	s.log.ErrorContext(ctx, msg, logger.Error(err))
	return handler.JSONError(handler.ErrInternal)
}
