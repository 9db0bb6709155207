package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// ChannelProvider hands out the channel to publish on. *Client implements it.
type ChannelProvider interface {
	Channel() *amqp.Channel
}

// channelPublisher is the part of *amqp.Channel the publisher needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	channel func() channelPublisher
}

func NewPublisher(client ChannelProvider) *Publisher {
	return &Publisher{
		channel: func() channelPublisher { return client.Channel() },
	}
}

// Publish publishes a JSON message to an exchange with a routing key
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	err = p.channel().PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to exchange '%s' with routing key '%s': %w", exchange, routingKey, err)
	}

	log.WithFields(log.Fields{
		"exchange":   exchange,
		"routingKey": routingKey,
	}).Debug("Message published")

	return nil
}

// PublishAnalysis publishes a completed analysis on the fraud exchange.
func (p *Publisher) PublishAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	return p.Publish(ctx, FraudExchange, RoutingKey(rec), NewAnalysisEvent(rec))
}

// PublishAnalysisFailure reports a queued request that could not be analysed.
func (p *Publisher) PublishAnalysisFailure(ctx context.Context, req AnalysisRequest, reason string) error {
	return p.Publish(ctx, FraudExchange, RoutingKeyAnalysisFailed, NewAnalysisFailureEvent(req, reason))
}

// RequestAnalysis enqueues content for a worker.
func (p *Publisher) RequestAnalysis(ctx context.Context, req AnalysisRequest) error {
	if req.Action == "" {
		req.Action = ActionAnalyze
	}
	return p.Publish(ctx, FraudExchange, RoutingKeyAnalysisRequested, req)
}
