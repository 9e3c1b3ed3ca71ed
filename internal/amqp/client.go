package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finboard/internal/core"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	publishRetries = 3
)

// ErrCircuitOpen is returned by publishes while the broker is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Handler processes one job. Returning an error requeues the delivery.
type Handler func(ctx context.Context, msg *JobMessage) error

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials the broker and declares the jobs exchange and queue.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName, queueName: queueName}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// One queue receives both job kinds.
	for _, key := range []string{KindFxRefresh, KindSnapshotExport} {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}
	return nil
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isCircuitOpen reports whether publishes should be refused. An open circuit moves to
// half-open once openTimeout has passed since the last failure.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// PublishFxRefresh asks the worker to refresh the FX table of date.
func (c *Client) PublishFxRefresh(ctx context.Context, date core.Date) error {
	return c.publish(ctx, NewFxRefreshMessage(date))
}

// PublishSnapshotExport asks the worker to export a snapshot of userID at date.
func (c *Client) PublishSnapshotExport(ctx context.Context, userID string, date core.Date) error {
	return c.publish(ctx, NewSnapshotExportMessage(userID, date))
}

func (c *Client) publish(ctx context.Context, msg *JobMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.Kind, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
			if err := c.connect(); err != nil {
				lastErr = err
				c.recordFailure()
				continue
			}
		}

		lastErr = c.publishOnce(ctx, msg.Kind, body)
		if lastErr == nil {
			c.recordSuccess()
			slog.InfoContext(ctx, "Published job message",
				"kind", msg.Kind,
				"date", msg.Date.String(),
				"exchange", c.exchangeName)
			return nil
		}
		c.recordFailure()
		if !isConnectionError(lastErr) {
			break
		}
		slog.WarnContext(ctx, "AMQP publish failed, reconnecting",
			"kind", msg.Kind,
			"attempt", attempt+1,
			"error", lastErr)
	}
	return fmt.Errorf("publish %s: %w", msg.Kind, lastErr)
}

func (c *Client) publishOnce(ctx context.Context, key string, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Consume delivers job messages to handler until ctx is done. A closed delivery
// channel triggers a reconnect with exponential backoff.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	for attempt := 0; ; {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer interrupted, reconnecting",
			"error", err,
			"retry_in", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if err := c.connect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return amqp091.ErrClosed
	}

	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming job messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	msg, err := JobMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode job message", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle job message",
			"kind", msg.Kind,
			"date", msg.Date.String(),
			"error", err)
		// Requeue once; a redelivered failure is dropped.
		delivery.Nack(false, !delivery.Redelivered)
		return
	}

	delivery.Ack(false)
	slog.InfoContext(ctx, "Processed job message", "kind", msg.Kind, "date", msg.Date.String())
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
