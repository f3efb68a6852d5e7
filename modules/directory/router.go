package directory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mailroom/pkg/handler"
	"github.com/dmitrymomot/mailroom/pkg/logger"
)

type Service struct {
	storage Storage
	log     *slog.Logger
}

func NewService(storage Storage, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{storage: storage, log: log}
}

// Handle mounts GET / returning every directory entry.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(s.list))
	return r
}

func (s *Service) list(ctx context.Context, _ struct{}) handler.Response {
	entries, err := s.storage.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list directory", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}
	return handler.JSON(entries)
}
