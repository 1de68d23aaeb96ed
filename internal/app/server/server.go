package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"timeoff/internal/domain/audit"
	"timeoff/internal/domain/auth"
	"timeoff/internal/domain/leave"
	"timeoff/internal/domain/notifications"
	"timeoff/internal/domain/staff"
	"timeoff/internal/platform/config"
	"timeoff/internal/platform/db"
	"timeoff/internal/platform/email"
	"timeoff/internal/platform/metrics"
	"timeoff/internal/transport/http/api"
	audithandler "timeoff/internal/transport/http/handlers/audit"
	leavehandler "timeoff/internal/transport/http/handlers/leave"
	notificationshandler "timeoff/internal/transport/http/handlers/notifications"
	"timeoff/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Router  http.Handler
	Staff   *staff.Directory
	Leave   *leave.Service
	Audit   *audit.Dispatcher
	Metrics *metrics.Collector

	ping  func(ctx context.Context) error
	close func()
}

// backend is everything that differs between the postgres and sqlite stores.
type backend struct {
	leave         leave.Store
	staff         staff.Source
	auditStore    *audit.Store
	notifications notifications.StoreAPI
	ping          func(ctx context.Context) error
	close         func()
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.Driver() == config.DriverSQLite {
		database, err := db.OpenSQLite(ctx, cfg.SQLitePath())
		if err != nil {
			return backend{}, err
		}
		return backend{
			leave: leave.NewSQLiteStore(database),
			staff: staff.NewSQLiteStore(database),
			ping:  database.PingContext,
			close: func() { database.Close() },
		}, nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return backend{}, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("migrations: %w", err)
		}
	}
	return backend{
		leave:         leave.NewPostgresStore(pool),
		staff:         staff.NewStore(pool),
		auditStore:    audit.NewStore(pool),
		notifications: notifications.NewStore(pool),
		ping:          pool.Ping,
		close:         pool.Close,
	}, nil
}

// New connects to the configured store and wires the engine and router. The
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	directory := staff.NewDirectory(be.staff, cfg.DirectoryCacheTTL)
	policy := auth.NewPolicy(cfg.AdminRoles)
	collector := metrics.New()

	recorders := []audit.Recorder{collector}
	if be.auditStore != nil {
		recorders = append(recorders, be.auditStore)
	} else {
		recorders = append(recorders, audit.LogRecorder{Logger: logger})
	}
	var notifier *notifications.Service
	if be.notifications != nil {
		notifier = notifications.New(be.notifications, directory, email.New(cfg))
		notifier.EmailEnabled = cfg.EmailEnabled
		notifier.DefaultFrom = cfg.EmailFrom
		recorders = append(recorders, notifier)
	}
	dispatcher := audit.NewDispatcher(cfg.AuditBufferSize, recorders...)
	collector.AuditStats = func() (uint64, uint64) { return dispatcher.Delivered(), dispatcher.Dropped() }

	service := leave.NewService(be.leave, directory, policy, dispatcher,
		leave.WithLocation(loc),
		leave.WithCategoryCacheTTL(cfg.DirectoryCacheTTL),
	)
	if cfg.RunSeed {
		if err := db.Seed(ctx, service, cfg); err != nil {
			be.close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app := &App{
		Config:  cfg,
		Staff:   directory,
		Leave:   service,
		Audit:   dispatcher,
		Metrics: collector,
		ping:    be.ping,
		close:   be.close,
	}

	var observer middleware.RequestObserver
	if cfg.MetricsEnabled {
		observer = collector
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger, observer))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, directory))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireIdentity)

		leavehandler.NewHandler(service).RegisterRoutes(r)

		if notifier != nil {
			notificationshandler.NewHandler(notifier).RegisterRoutes(r)
		}
		if be.auditStore != nil {
			audithandler.NewHandler(be.auditStore, policy).RegisterRoutes(r)
		}
	})

	app.Router = router
	return app, nil
}

// Run serves HTTP and delivers audit events until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Audit.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("timeoff server listening", "addr", a.Config.Addr, "driver", a.Config.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}
