package rabbitmq

import (
	"context"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const retryHeader = "x-retry-count"

// RetryCount reads how many times a delivery was already retried.
func RetryCount(d amqp.Delivery) int {
	switch v := d.Headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// RetryDelay backs off linearly: 1s, 2s, 3s... capped at 30s.
func RetryDelay(attempt int) time.Duration {
	d := time.Duration(attempt+1) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// PublishRetry parks d on the retry queue; its TTL dead-letters it back to
// the main queue after delay.
func PublishRetry(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, delay time.Duration) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(RetryCount(d) + 1)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(cctx, "", queue+".retry", false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Type:         d.Type,
		Headers:      headers,
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Body:         d.Body,
		Timestamp:    d.Timestamp,
	})
}
