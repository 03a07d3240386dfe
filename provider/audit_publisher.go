package provider

import (
	"context"
	"fmt"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/events/kafka"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/rs/zerolog"
)

const defaultAuditTopic = "spinrewards.audit"

// AuditPublisher implements providers.AuditPublisher on Kafka. Without a
// producer, events are only logged.
type AuditPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
}

// NewAuditPublisher creates an audit publisher
func NewAuditPublisher(cfg *config.Config, producer *kafka.Producer, logger zerolog.Logger) *AuditPublisher {
	return &AuditPublisher{
		producer: producer,
		topic:    cfg.Kafka.TopicOrDefault("audit", defaultAuditTopic),
		logger:   logger.With().Str("component", "audit_publisher").Logger(),
	}
}

// Publish sends event keyed by event.Key
func (p *AuditPublisher) Publish(ctx context.Context, event providers.AuditEvent) error {
	if p.producer == nil {
		p.logger.Debug().Str("type", event.Type).Str("key", event.Key).Msg("Kafka producer not configured, audit event logged only")
		return nil
	}

	if err := p.producer.Publish(ctx, p.topic, event.Key, event.Type, event); err != nil {
		p.logger.Error().Err(err).Str("type", event.Type).Msg("Failed to publish audit event")
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}
