package app

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/config"
	"crmTasks/internal/handlers"
	"crmTasks/internal/logger"
	"crmTasks/internal/middleware"
	"crmTasks/internal/notification"
	"crmTasks/internal/reminder"
	jobinmemory "crmTasks/internal/reminder/jobstore/inmemory"
	jobpostgres "crmTasks/internal/reminder/jobstore/postgres"
	jobredis "crmTasks/internal/reminder/jobstore/redis"
	customerinmemory "crmTasks/internal/repository/customer/inmemory"
	customerpostgres "crmTasks/internal/repository/customer/postgres"
	taskinmemory "crmTasks/internal/repository/task/inmemory"
	taskpostgres "crmTasks/internal/repository/task/postgres"
	"crmTasks/internal/service"
	"crmTasks/internal/worker"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type jobStore interface {
	reminder.JobStore
	Start(ctx context.Context, fire reminder.FireFunc) error
	Stop()
}

type App struct {
	config    *config.Config
	clock     clock.Clock
	server    *http.Server
	router    *chi.Mux
	pool      *pgxpool.Pool
	tasks     *service.TaskService
	customers *service.CustomerService
	jobs      jobStore
	worker    *worker.ReminderWorker
	shutdowns []func() // run in reverse order by Shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		clock:     clock.Real{},
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	taskRepo, customerRepo, err := a.initRepositories(ctx)
	if err != nil {
		a.Shutdown()
		return nil, err
	}

	if err := a.initJobStore(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}

	sender, err := a.initSender()
	if err != nil {
		a.Shutdown()
		return nil, err
	}

	dispatcher := notification.NewService(taskRepo, customerRepo, sender, a.clock)
	a.tasks = service.NewTaskService(taskRepo, customerRepo, reminder.NewScheduler(a.jobs), dispatcher)
	a.customers = service.NewCustomerService(customerRepo, a.tasks)

	a.initRouter()
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "crm-tasks"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("App: initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.String("reminder_store", a.config.Reminders.Store),
		zap.String("notification_sender", a.config.Notification.Sender),
	)
	return a, nil
}

func (a *App) initRepositories(ctx context.Context) (service.TaskRepository, service.CustomerRepository, error) {
	if a.config.Repository.Type != "postgres" {
		return taskinmemory.NewTaskStorage(a.clock), customerinmemory.NewCustomerStorage(a.clock), nil
	}

	pool, err := taskpostgres.NewPool(ctx, a.config.Database.URL, taskpostgres.PoolOptions{
		MaxConns:        int32(a.config.Database.MaxConnections),
		MinConns:        int32(a.config.Database.MinConnections),
		MaxConnIdleTime: a.config.Database.IdleTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: closing postgres pool")
		pool.Close()
	})

	return taskpostgres.New(pool), customerpostgres.New(pool), nil
}

func (a *App) initJobStore(ctx context.Context) error {
	cfg := a.config.Reminders

	switch cfg.Store {
	case "postgres":
		if a.pool == nil {
			return errors.New("postgres reminder store requires the postgres repository")
		}
		a.jobs = jobpostgres.New(a.pool)
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("App: closing redis client")
			_ = client.Close()
		})
		a.jobs = jobredis.New(client, cfg.RedisPrefix, a.clock)
	default:
		a.jobs = jobinmemory.New(a.clock)
	}

	if source, ok := a.jobs.(worker.DueJobSource); ok {
		a.worker = worker.NewReminderWorker(source, &cfg.PollInterval, &cfg.BatchSize)
	}
	return nil
}

func (a *App) initSender() (notification.Sender, error) {
	cfg := a.config.Notification
	if cfg.Sender != "nats" {
		return notification.LogSender{}, nil
	}

	sender, err := notification.NewNATSSender(cfg.NatsURL, cfg.Subject)
	if err != nil {
		return nil, err
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: draining NATS connection")
		if err := sender.Close(); err != nil {
			logger.Warn("App: NATS drain failed", zap.Error(err))
		}
	})
	return sender, nil
}

func (a *App) initRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit, a.clock))

	taskHandler := handlers.NewTaskHandler(a.tasks)
	customerHandler := handlers.NewCustomerHandler(a.customers)
	taskHandler.Routes(r)
	customerHandler.Routes(r)

	a.router = r
}

// Handler exposes the routed API without the tracing wrapper.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the job store, the reminder worker when the store is polled, and
// the HTTP server. It blocks until ctx is done or the server fails, then
// releases every resource.
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	if err := a.jobs.Start(ctx, a.tasks.HandleReminder); err != nil {
		return fmt.Errorf("start reminder store: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: stopping reminder store")
		a.jobs.Stop()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
