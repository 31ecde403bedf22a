package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/gryn010/inception/internal/app"
	"github.com/gryn010/inception/internal/config"
	"github.com/gryn010/inception/internal/queue"
	mid "github.com/gryn010/inception/internal/server/middleware"
	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/internal/util"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho creates the echo instance with validation, the app context and
// all routes registered.
func NewEcho(a *mid.App, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(a))
	e.Use(echomw.CORS())
	e.Use(echomw.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(util.GetEnvString("BODY_LIMIT", "16M")))

	RegisterRoutes(e, gatherer)
	return e
}

// RunMigrations applies the schema from migrationsURL, e.g. file://migrations.
func RunMigrations(migrationsURL, databaseURL string) error {
	m, err := migrate.New(migrationsURL, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, errs := config.Load(util.GetEnvString("LINKING_CONFIG_FILE", ""))
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("Invalid linking configuration", "err", err)
		}
		os.Exit(1)
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("RUN_MIGRATIONS", true) {
		if err := RunMigrations(util.GetEnvString("MIGRATIONS_URL", "file://migrations"), databaseURL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	redisClient, err := app.NewRedisClient(ctx, util.GetEnvString("REDIS_URL", ""))
	if err != nil {
		logger.Fatal("Failed to connect to redis", "err", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	s3, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := linking.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		logger.Fatal("Failed to register metrics", "err", err)
	}

	linkingApp, err := app.NewLinking(ctx, app.Params{
		Pool:    conn,
		Config:  cfg,
		Redis:   redisClient,
		Objects: s3,
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal("Failed to create linking service", "err", err)
	}
	defer linkingApp.Store.Close()

	que, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	e := NewEcho(&mid.App{
		Linking:        linkingApp.Service,
		Registry:       linkingApp.Store,
		Queue:          ch,
		Objects:        s3,
		Keyfunc:        k.Keyfunc,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   int64(util.GetEnvInt("MASTER_USER_ID", 0)),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}, reg)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
