package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"habittracker/pkg/circuitbreaker"
	"habittracker/pkg/db"
	"habittracker/pkg/metrics"
	"habittracker/pkg/trace"
)

// Publisher is the subset of mq.Publisher the dispatcher needs.
type Publisher interface {
	PublishRaw(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	repo       *Repository
	tx         *db.TxRunner
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(
	repo *Repository,
	tx *db.TxRunner,
	publisher Publisher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		tx:         tx,
		publisher:  publisher,
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:     logger,
		maxRetries: 5,
		interval:   1 * time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	d.maxRetries = maxRetries
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	d.batchSize = batchSize
	return d
}

// Start 启动 Dispatcher（在 goroutine 中运行）
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.processPendingEvents(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("Outbox batch failed", zap.Error(err))
			}
		}
	}
}

// processPendingEvents 在一个事务中领取并发布一批事件
func (d *Dispatcher) processPendingEvents(ctx context.Context) error {
	if d.breaker.GetState() == circuitbreaker.StateOpen {
		d.logger.Debug("Outbox dispatch skipped, circuit breaker open")
		return nil
	}

	return d.tx.InTx(ctx, func(q db.DBTX) error {
		events, err := d.repo.GetPendingEvents(ctx, q, d.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

		for _, event := range events {
			if err := d.publishEvent(ctx, event); err != nil {
				metrics.IncrementOutboxPublish(event.RoutingKey, "error")
				d.logger.Error("Failed to publish event",
					zap.Int64("event_id", event.ID),
					zap.String("routing_key", event.RoutingKey),
					zap.Error(err),
				)
				if err := d.repo.MarkAsFailed(ctx, q, event.ID, d.maxRetries); err != nil {
					return err
				}
				continue
			}

			metrics.IncrementOutboxPublish(event.RoutingKey, "ok")
			if err := d.repo.MarkAsSent(ctx, q, event.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// publishEvent 发布单个事件到 MQ，message id 为 outbox 事件 ID
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	ctx = contextWithPayloadTrace(ctx, event.Payload)
	return d.breaker.Execute(func() error {
		return d.publisher.PublishRaw(ctx, event.RoutingKey, strconv.FormatInt(event.ID, 10), event.Payload)
	})
}

// contextWithPayloadTrace 从 payload 中提取 trace_id（如果存在）
func contextWithPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}
