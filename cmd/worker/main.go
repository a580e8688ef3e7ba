package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/ai-debate/internal/activity"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/db"
	"github.com/suPer8Hu/ai-debate/internal/logging"
	"github.com/suPer8Hu/ai-debate/internal/store/rabbitmq"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, true)
	slog.SetDefault(logger)

	if cfg.RabbitURL == "" {
		logger.Error("RABBIT_URL is required for the worker")
		os.Exit(1)
	}

	gdb, err := db.Connect(cfg.ActivityDBDSN)
	if err != nil {
		logger.Error("open activity db", "err", err)
		os.Exit(1)
	}
	store := activity.NewStore(gdb)
	if err := store.Migrate(); err != nil {
		logger.Error("migrate activities", "err", err)
		os.Exit(1)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("rabbit dial", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("rabbit channel", "err", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		logger.Error("queue declare", "err", err)
		os.Exit(1)
	}

	// strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Error("qos", "err", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("consume", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	c := &consumer{
		logger: logger,
		store:  store,
		retry: func(ctx context.Context, d amqp.Delivery, delay time.Duration) error {
			return rabbitmq.PublishRetry(ctx, ch, cfg.RabbitQueue, d, delay)
		},
	}

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wc := *c
			wc.logger = logger.With("worker", workerID)
			for d := range jobs {
				wc.handle(ctx, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
