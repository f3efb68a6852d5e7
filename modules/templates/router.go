package templates

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mailroom/pkg/binder"
	"github.com/dmitrymomot/mailroom/pkg/handler"
	"github.com/dmitrymomot/mailroom/pkg/logger"
)

// Service exposes the template CRUD endpoints. The owning user id comes
// from configuration rather than an auth layer; every storage call is
// scoped by it.
type Service struct {
	storage Storage
	userID  int64
	log     *slog.Logger
}

func NewService(storage Storage, userID int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{storage: storage, userID: userID, log: log}
}

// Handle mounts the CRUD routes:
//
//	GET    /            — list, ordered by name
//	POST   /            — create, 400 when name is blank
//	GET    /{id}        — fetch one, 404 on miss or foreign owner
//	PUT    /{id}        — full replace
//	DELETE /{id}        — idempotent delete
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(s.list))
	r.Post("/", handler.Wrap(s.create, binder.JSON()))
	r.Get("/{id}", handler.Wrap(s.get, binder.Path()))
	r.Put("/{id}", handler.Wrap(s.update, binder.Path(), binder.JSON()))
	r.Delete("/{id}", handler.Wrap(s.delete, binder.Path()))
	return r
}

func (s *Service) list(ctx context.Context, _ struct{}) handler.Response {
	list, err := s.storage.List(ctx, s.userID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list templates", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}
	return handler.JSON(list)
}

type templateIDRequest struct {
	ID int64 `path:"id"`
}

func (s *Service) get(ctx context.Context, req templateIDRequest) handler.Response {
	t, err := s.storage.GetByID(ctx, req.ID, s.userID)
	if err != nil {
		return s.storageError(ctx, "failed to load template", err)
	}
	return handler.JSON(t)
}

type saveTemplateRequest struct {
	ID      int64  `path:"id" json:"-"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r saveTemplateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return handler.NewValidationError("name", "Name is required")
	}
	return nil
}

func (s *Service) create(ctx context.Context, req saveTemplateRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.JSONError(err)
	}

	t, err := s.storage.Create(ctx, s.userID, req.Name, req.Subject, req.Body)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to create template", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}
	return handler.JSONWithStatus(map[string]int64{"id": t.ID}, http.StatusCreated)
}

func (s *Service) update(ctx context.Context, req saveTemplateRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.JSONError(err)
	}

	if err := s.storage.Update(ctx, req.ID, s.userID, req.Name, req.Subject, req.Body); err != nil {
		return s.storageError(ctx, "failed to update template", err)
	}
	return handler.NoContent()
}

func (s *Service) delete(ctx context.Context, req templateIDRequest) handler.Response {
	if err := s.storage.Delete(ctx, req.ID, s.userID); err != nil {
		s.log.ErrorContext(ctx, "failed to delete template", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}
	return handler.NoContent()
}

// storageError translates store errors: not-found stays a generic 404,
// everything else is logged and collapses into an opaque 500.
func (s *Service) storageError(ctx context.Context, msg string, err error) handler.Response {
	if errors.Is(err, ErrNotFound) {
		return handler.JSONError(handler.ErrNotFound)
	}
	s.log.ErrorContext(ctx, msg, logger.Error(err))
	return handler.JSONError(handler.ErrInternal)
}
