package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mailroom/modules/compose"
	"github.com/dmitrymomot/mailroom/modules/directory"
	"github.com/dmitrymomot/mailroom/modules/mailbox"
	"github.com/dmitrymomot/mailroom/modules/templates"
	"github.com/dmitrymomot/mailroom/pkg/config"
	"github.com/dmitrymomot/mailroom/pkg/email"
	"github.com/dmitrymomot/mailroom/pkg/environment"
	"github.com/dmitrymomot/mailroom/pkg/httpserver"
	"github.com/dmitrymomot/mailroom/pkg/logger"
	"github.com/dmitrymomot/mailroom/pkg/pg"
	"github.com/dmitrymomot/mailroom/pkg/requestid"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`
	// LogFormat overrides the environment preset when set ("json"/"text").
	LogFormat string `env:"LOG_FORMAT"`
	// UserID is the operator account every request acts as. Replaced by a
	// real authenticated session once auth lands.
	UserID     int64         `env:"APP_USER_ID" envDefault:"1"`
	SessionTTL time.Duration `env:"COMPOSE_SESSION_TTL" envDefault:"30m"`
}

func main() {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	var emailCfg email.Config
	config.MustLoad(&emailCfg)

	env := environment.Parse(appCfg.Env)
	logOpts := []logger.Option{
		logger.WithEnvironment(env, "mailroom"),
		logger.WithContextExtractors(environment.LogExtractor(), requestid.LogExtractor()),
	}
	if appCfg.LogFormat != "" {
		logOpts = append(logOpts, logger.WithFormat(logger.Format(appCfg.LogFormat)))
	}
	log := logger.New(logOpts...)

	if err := run(ctx, appCfg, pgCfg, httpCfg, emailCfg, env, log); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	appCfg appConfig,
	pgCfg pg.Config,
	httpCfg httpserver.Config,
	emailCfg email.Config,
	env environment.Environment,
	log *slog.Logger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	sender, err := email.NewSenderFromConfig(emailCfg)
	if err != nil {
		return err
	}

	templatesRepo := templates.NewRepository(pool)
	mailboxRepo := mailbox.NewRepository(pool)
	directoryRepo := directory.NewRepository(pool)

	sessions := compose.NewRegistry(appCfg.SessionTTL)
	go sessions.Run(ctx, time.Minute)

	templatesSvc := templates.NewService(templatesRepo, appCfg.UserID, log)
	mailboxSvc := mailbox.NewService(mailboxRepo, sender, appCfg.UserID, log)
	directorySvc := directory.NewService(directoryRepo, log)
	composeSvc := compose.NewService(sessions, templatesRepo, directoryRepo, mailboxRepo, sender, appCfg.UserID, log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(environment.Middleware(env))

	healthcheck := pg.Healthcheck(pool)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := healthcheck(r.Context()); err != nil {
			log.ErrorContext(r.Context(), "healthcheck failed", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/templates", templatesSvc.Handle())
		r.Mount("/users", directorySvc.Handle())
		r.Mount("/compose", composeSvc.Handle())
		r.Mount("/", mailboxSvc.Handle())
	})

	return httpserver.New(httpCfg, log).Run(ctx, r)
}
