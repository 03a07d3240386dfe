package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	defaultWorkerNum = 2
	defaultQueueSize = 256

	// HeaderEventType names the audit event carried by a message.
	HeaderEventType = "event-type"
	// HeaderContentType is always application/json.
	HeaderContentType = "content-type"
)

// Producer publishes audit messages through a small worker pool so the
// engine loop never waits on a broker.
type Producer struct {
	writer    *kafka.Writer
	logger    zerolog.Logger
	jobs      chan kafka.Message
	workerNum int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers   []string
	Logger    zerolog.Logger
	WorkerNum int
	QueueSize int
}

// NewProducer creates a producer, or returns nil when no brokers are configured.
func NewProducer(config ProducerConfig) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		Async:        false,
	}

	workerNum := config.WorkerNum
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Producer{
		writer:    writer,
		logger:    config.Logger.With().Str("component", "kafka-producer").Logger(),
		jobs:      make(chan kafka.Message, queueSize),
		workerNum: workerNum,
	}

	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p, nil
}

func (p *Producer) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error().
					Err(err).
					Str("topic", msg.Topic).
					Str("key", string(msg.Key)).
					Msg("Failed to publish audit event")
			} else {
				p.logger.Debug().
					Str("topic", msg.Topic).
					Str("key", string(msg.Key)).
					Msg("Audit event published")
			}
		}()
	}
}

// Publish queues an audit event for the worker pool, waiting for queue
// space until ctx is done. Events with the same key (one spin, one
// settlement) land on the same partition in order. The event type travels
// as a header so consumers can route without decoding the body.
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}

	select {
	case p.jobs <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to queue message for %s: %w", topic, ctx.Err())
	}
}

// Close drains queued messages and closes the writer
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		if err = p.writer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Error closing Kafka producer")
		}
	})
	return err
}

func (p *Producer) recover() {
	if r := recover(); r != nil {
		stack := debug.Stack()
		p.logger.Error().
			Str("operation", "publish_audit_event").
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(stack)).
			Msg("Panic recovered")
	}
}
