package mq

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"habittracker/pkg/metrics"
	"habittracker/pkg/trace"
	"habittracker/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryCounter counts delivery attempts per message.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterSink receives messages that will not be retried.
type DeadLetterSink interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, failedAt string) error
}

type messageIDKey struct{}

// MessageIDFromContext returns the AMQP message id of the delivery being handled.
func MessageIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(messageIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithMessageID attaches a message id to ctx.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	tag        string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	retries    RetryCounter
	dlq        DeadLetterSink
	maxRetries int64
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare dlq exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		tag:        "worker." + queueName,
		logger:     logger,
		maxRetries: 3,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithRetryPolicy enables bounded retries; exhausted or non-retryable
// messages are routed to the dead letter exchange and acked.
func (c *Consumer) WithRetryPolicy(retries RetryCounter, dlq DeadLetterSink, maxRetries int64) *Consumer {
	c.retries = retries
	c.dlq = dlq
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	return c
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels the delivery stream; StartConsuming returns once drained.
func (c *Consumer) Stop() {
	if c.channel != nil {
		_ = c.channel.Cancel(c.tag, false)
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handleDelivery(msg)
	}

	c.logger.Info("Consumer delivery stream closed", zap.String("queue", c.queue.Name))
	return nil
}

func (c *Consumer) handleDelivery(msg amqp091.Delivery) {
	start := time.Now()
	ctx := WithMessageID(context.Background(), msg.MessageId)
	if traceID, ok := msg.Headers[traceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}

	// 保证每条消息都会被 ack 或 nack，即使 handler panic
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			c.fail(ctx, msg, fmt.Errorf("handler panic: %v", r))
			metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, "panic", time.Since(start))
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		c.logger.Error("Handler error",
			zap.String("routing_key", c.routingKey),
			zap.String("queue", c.queue.Name),
			zap.String("trace_id", trace.FromContext(ctx)),
			zap.Error(err),
		)
		c.fail(ctx, msg, err)
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, "error", time.Since(start))
		return
	}

	if c.retries != nil {
		_ = c.retries.Reset(ctx, c.retryKey(msg))
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, "ok", time.Since(start))
}

// Action is what the consumer does with a failed delivery.
type Action int

const (
	ActionRequeue Action = iota
	ActionDeadLetter
)

// Decide picks the action for a failed delivery given its attempt count.
func Decide(err error, attempt, maxRetries int64) Action {
	retryable, _ := util.IsRetryableError(err)
	if util.ShouldRetry(attempt, maxRetries, retryable) {
		return ActionRequeue
	}
	return ActionDeadLetter
}

func (c *Consumer) fail(ctx context.Context, msg amqp091.Delivery, handlerErr error) {
	// 未配置重试策略时保持原行为：重新入队
	if c.retries == nil || c.dlq == nil {
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack message", zap.String("routing_key", c.routingKey), zap.Error(err))
		}
		return
	}

	key := c.retryKey(msg)
	attempt, err := c.retries.IncrementAndGet(ctx, key)
	if err != nil {
		c.logger.Warn("Retry counter unavailable, requeueing", zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}

	if Decide(handlerErr, attempt, c.maxRetries) == ActionRequeue {
		c.logger.Info("Requeueing message",
			zap.String("queue", c.queue.Name),
			zap.Int64("attempt", attempt),
		)
		_ = msg.Nack(false, true)
		return
	}

	_, errType := util.IsRetryableError(handlerErr)
	if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, handlerErr.Error(), c.queue.Name); err != nil {
		c.logger.Error("Failed to dead-letter message, requeueing", zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}

	c.logger.Warn("Message dead-lettered",
		zap.String("queue", c.queue.Name),
		zap.String("error_type", errType),
		zap.Int64("attempt", attempt),
	)
	_ = c.retries.Reset(ctx, key)
	_ = msg.Ack(false)
}

func (c *Consumer) retryKey(msg amqp091.Delivery) string {
	id := msg.MessageId
	if id == "" {
		sum := sha1.Sum(msg.Body)
		id = hex.EncodeToString(sum[:])
	}
	return util.FormatRetryKey(c.queue.Name, id)
}
