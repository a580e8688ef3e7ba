package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/ai-debate/internal/activity"
)

// acker records how a delivery was settled.
type acker struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *acker) Ack(uint64, bool) error { a.acks++; return nil }
func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}
func (a *acker) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

type saverFunc func(ctx context.Context, a activity.Activity) error

func (f saverFunc) Save(ctx context.Context, a activity.Activity) error { return f(ctx, a) }

const validBody = `{"type":"session_created","user_key":"ana@example.com","session_id":"s1"}`

func delivery(body string, retries int32) (amqp.Delivery, *acker) {
	ack := &acker{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
	if retries > 0 {
		d.Headers = amqp.Table{"x-retry-count": retries}
	}
	return d, ack
}

func newConsumer(save saverFunc, retryErr error) (*consumer, *int) {
	retries := 0
	return &consumer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:  save,
		retry: func(context.Context, amqp.Delivery, time.Duration) error {
			retries++
			return retryErr
		},
	}, &retries
}

func TestClassify(t *testing.T) {
	boom := errors.New("disk full")
	cases := []struct {
		err     error
		attempt int
		want    outcome
	}{
		{nil, 0, outcomeAck},
		{nil, maxRetries, outcomeAck},
		{boom, 0, outcomeRetry},
		{boom, maxRetries - 1, outcomeRetry},
		{boom, maxRetries, outcomeDeadLetter},
		{context.Canceled, maxRetries, outcomeRequeue},
		{context.DeadlineExceeded, 0, outcomeRequeue},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err, tc.attempt), "err=%v attempt=%d", tc.err, tc.attempt)
	}
}

func TestHandle_SavesDuringShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var saved activity.Activity
	c, _ := newConsumer(func(ctx context.Context, a activity.Activity) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		saved = a
		return nil
	}, nil)

	d, ack := delivery(validBody, 0)
	assert.Equal(t, outcomeAck, c.handle(ctx, d))
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, "s1", saved.SessionID)
}

func TestHandle_InterruptedSaveIsRequeued(t *testing.T) {
	c, retries := newConsumer(func(context.Context, activity.Activity) error {
		return context.Canceled
	}, nil)

	d, ack := delivery(validBody, 0)
	assert.Equal(t, outcomeRequeue, c.handle(context.Background(), d))
	require.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
	assert.Zero(t, *retries)
}

func TestHandle_StoreFailureRetriesThenDeadLetters(t *testing.T) {
	c, retries := newConsumer(func(context.Context, activity.Activity) error {
		return errors.New("locked")
	}, nil)

	d, ack := delivery(validBody, 2)
	assert.Equal(t, outcomeRetry, c.handle(context.Background(), d))
	assert.Equal(t, 1, *retries)
	assert.Equal(t, 1, ack.acks)

	d, ack = delivery(validBody, maxRetries)
	assert.Equal(t, outcomeDeadLetter, c.handle(context.Background(), d))
	assert.Equal(t, 1, *retries)
	require.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestHandle_RetryPublishFailureRequeues(t *testing.T) {
	c, _ := newConsumer(func(context.Context, activity.Activity) error {
		return errors.New("locked")
	}, errors.New("channel closed"))

	d, ack := delivery(validBody, 0)
	assert.Equal(t, outcomeRequeue, c.handle(context.Background(), d))
	require.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
	assert.Zero(t, ack.acks)
}

func TestHandle_MalformedGoesToDLQ(t *testing.T) {
	c, _ := newConsumer(func(context.Context, activity.Activity) error {
		t.Fatal("malformed body must not be stored")
		return nil
	}, nil)

	for _, body := range []string{"not json", `{"type":"session_created"}`} {
		d, ack := delivery(body, 0)
		assert.Equal(t, outcomeDeadLetter, c.handle(context.Background(), d))
		require.Equal(t, 1, ack.nacks)
		assert.False(t, ack.requeue)
	}
}
