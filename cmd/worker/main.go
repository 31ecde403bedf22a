package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gryn010/inception/internal/app"
	"github.com/gryn010/inception/internal/config"
	"github.com/gryn010/inception/internal/queue"
	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/internal/util"
	"github.com/gryn010/inception/pkg/leaselock"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Prefix: "worker",
		JSON:   util.GetEnvBool("LOG_JSON", false),
	})
	logger.Init(consoleLogger)

	cfg, errs := config.Load(util.GetEnvString("LINKING_CONFIG_FILE", ""))
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("Invalid linking configuration", "err", err)
		}
		os.Exit(1)
	}

	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	pgPool, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgPool.Close()

	redisClient, err := app.NewRedisClient(ctx, util.GetEnvString("REDIS_URL", ""))
	if err != nil {
		logger.Fatal("Unable to connect to redis", "err", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	linkingApp, err := app.NewLinking(ctx, app.Params{
		Pool:    pgPool,
		Config:  cfg,
		Redis:   redisClient,
		Objects: s3Client,
		Metrics: linking.NewMetrics(),
	})
	if err != nil {
		logger.Fatal("Could not create linking service", "err", err)
	}
	defer linkingApp.Store.Close()

	hostname, _ := os.Hostname()
	guard, err := leaselock.NewGuard(pgPool, hostname)
	if err != nil {
		logger.Fatal("Could not create job lease guard", "err", err)
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	prefetch := util.GetEnvInt("WORKER_PREFETCH", cfg.MaxParallel)
	if err := consumerCh.Qos(prefetch, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	handler := &queue.LinkJobHandler{
		Linker:       linkingApp.Service,
		Objects:      s3Client,
		Leases:       guard,
		Publisher:    ch,
		FetchTries:   util.GetEnvInt("WORKER_FETCH_TRIES", 3),
		FetchBackoff: util.GetEnvDuration("WORKER_FETCH_BACKOFF", 500*time.Millisecond),
	}

	msgs, err := consumerCh.Consume(
		queue.LinkQueue,
		fmt.Sprintf("%s_consumer_%s", queue.LinkQueue, guard.Holder()),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.LinkQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.LinkQueue, "prefetch", prefetch)

	sem := make(chan struct{}, prefetch)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.LinkQueue)
				return
			}
			sem <- struct{}{}
			go func(msg amqp.Delivery) {
				defer func() { <-sem }()
				handle(ctx, handler, consumerCh, msg)
			}(msg)
		}
	}
}

func handle(ctx context.Context, handler *queue.LinkJobHandler, ch *amqp.Channel, msg amqp.Delivery) {
	startTime := time.Now()
	logger.Debug("Received message", "queue", queue.LinkQueue)

	if err := handler.ProcessLinkMessage(ctx, msg.Body); err != nil {
		logger.Error("Error processing message", "queue", queue.LinkQueue, "err", err)
		queue.HandleProcessingError(ch, msg, queue.LinkQueue)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}
	logger.Info("Message processed successfully", "queue", queue.LinkQueue, "duration", time.Since(startTime))
}
