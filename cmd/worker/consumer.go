package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/ai-debate/internal/activity"
	"github.com/suPer8Hu/ai-debate/internal/store/rabbitmq"
)

const (
	maxRetries = 5
	// saveTimeout bounds one write. Writes are detached from the shutdown
	// signal so buffered deliveries still land while the pool drains.
	saveTimeout = 10 * time.Second
)

type saver interface {
	Save(ctx context.Context, a activity.Activity) error
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeRequeue
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRetry:
		return "retry"
	case outcomeRequeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// classify decides what happens to a decoded delivery after Save.
// Interrupted writes go back to the queue untouched; they are not failures
// of the message.
func classify(saveErr error, attempt int) outcome {
	switch {
	case saveErr == nil:
		return outcomeAck
	case errors.Is(saveErr, context.Canceled), errors.Is(saveErr, context.DeadlineExceeded):
		return outcomeRequeue
	case attempt >= maxRetries:
		return outcomeDeadLetter
	default:
		return outcomeRetry
	}
}

type consumer struct {
	logger *slog.Logger
	store  saver
	retry  func(ctx context.Context, d amqp.Delivery, delay time.Duration) error
}

// handle stores one activity. Malformed bodies go straight to the DLQ;
// storage failures are retried through the retry queue up to maxRetries
// times.
func (c *consumer) handle(ctx context.Context, d amqp.Delivery) outcome {
	start := time.Now()

	a, err := activity.Decode(d.Body)
	if err != nil {
		c.logger.Warn("bad message", "err", err)
		_ = d.Nack(false, false)
		return outcomeDeadLetter
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	attempt := rabbitmq.RetryCount(d)
	saveErr := c.store.Save(wctx, a)
	out := classify(saveErr, attempt)
	switch out {
	case outcomeAck:
		if err := d.Ack(false); err != nil {
			c.logger.Error("ack failed", "type", a.Type, "err", err)
		}
		if cost := time.Since(start); cost > 500*time.Millisecond {
			c.logger.Info("activity_timing", "type", a.Type, "user_key", a.UserKey, "cost", cost)
		}
	case outcomeRequeue:
		c.logger.Warn("store activity interrupted, requeueing", "type", a.Type, "err", saveErr)
		_ = d.Nack(false, true)
	case outcomeDeadLetter:
		c.logger.Error("store activity failed, dead-lettering", "type", a.Type, "attempt", attempt, "cost", time.Since(start), "err", saveErr)
		_ = d.Nack(false, false)
	case outcomeRetry:
		if perr := c.retry(wctx, d, rabbitmq.RetryDelay(attempt)); perr != nil {
			c.logger.Error("schedule retry failed, requeueing", "type", a.Type, "err", perr)
			_ = d.Nack(false, true)
			return outcomeRequeue
		}
		c.logger.Warn("store activity failed, retrying", "type", a.Type, "attempt", attempt+1, "err", saveErr)
		_ = d.Ack(false)
	}
	return out
}
