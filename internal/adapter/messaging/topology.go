package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const (
	FraudExchange = "fraud"

	AnalysisRequestQueue = "fraud.analysis.requests"

	RoutingKeyAnalysisRequested = "analysis.requested"
	RoutingKeyAnalysisCompleted = "analysis.completed"
	RoutingKeyFraudDetected     = "analysis.fraud.detected"
	RoutingKeyAnalysisFailed    = "analysis.failed"
)

// Setup declares the fraud exchange and the analysis request queue.
func Setup(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		FraudExchange,
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", FraudExchange, err)
	}

	if _, err := ch.QueueDeclare(
		AnalysisRequestQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", AnalysisRequestQueue, err)
	}

	if err := ch.QueueBind(
		AnalysisRequestQueue,
		RoutingKeyAnalysisRequested,
		FraudExchange,
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to bind queue '%s' to exchange '%s' with routing key '%s': %w",
			AnalysisRequestQueue, FraudExchange, RoutingKeyAnalysisRequested, err)
	}

	log.WithFields(log.Fields{
		"exchange": FraudExchange,
		"queue":    AnalysisRequestQueue,
	}).Info("AMQP topology ready")
	return nil
}
