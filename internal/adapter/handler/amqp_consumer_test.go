package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/adapter/messaging"
	"github.com/hive-corporation/fraudshield/internal/core/service"
)

type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeued []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if requeue {
		f.requeued = append(f.requeued, tag)
	} else {
		f.nacked = append(f.nacked, tag)
	}
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type recordingFailures struct {
	mu      sync.Mutex
	reasons map[string]string
}

func (r *recordingFailures) PublishAnalysisFailure(_ context.Context, req messaging.AnalysisRequest, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reasons == nil {
		r.reasons = make(map[string]string)
	}
	r.reasons[req.RequestID] = reason
	return nil
}

func stopConsumer(t *testing.T, c *AMQPConsumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Stop(ctx)
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, key string, body interface{}) *amqp.Delivery {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return &amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, RoutingKey: key, Body: raw}
}

func TestAMQPConsumer_ProcessesValidRequests(t *testing.T) {
	svc := service.NewDetectionService(service.Options{})
	consumer := NewAMQPConsumer(svc, validator.New(), nil, 2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)

	ack := &fakeAcknowledger{}
	consumer.Handle(ctx, delivery(t, ack, 1, messaging.RoutingKeyAnalysisRequested, messaging.AnalysisRequest{
		ClientID: "worker-test",
		Action:   messaging.ActionAnalyze,
		Type:     "text",
		Content:  scamText,
	}))

	stopConsumer(t, consumer)

	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Empty(t, ack.nacked)

	snap := svc.History("worker-test")
	require.Equal(t, 1, snap.AnalysisCount)
	assert.True(t, snap.History[0].Verdict.IsFraudulent)
}

func TestAMQPConsumer_RejectsInvalidMessages(t *testing.T) {
	consumer := NewAMQPConsumer(service.NewDetectionService(service.Options{}), validator.New(), nil, 1, 1)
	ack := &fakeAcknowledger{}
	ctx := context.Background()

	consumer.Handle(ctx, delivery(t, ack, 1, messaging.RoutingKeyAnalysisRequested, map[string]string{
		"action": "analyze", "type": "audio", "content": "x",
	}))
	consumer.Handle(ctx, &amqp.Delivery{Acknowledger: ack, DeliveryTag: 2,
		RoutingKey: messaging.RoutingKeyAnalysisRequested, Body: []byte("{broken")})
	consumer.Handle(ctx, delivery(t, ack, 3, "something.else", map[string]string{}))

	assert.Equal(t, []uint64{1, 2}, ack.nacked)
	// unknown routing keys are dropped, not dead-lettered
	assert.Equal(t, []uint64{3}, ack.acked)
}

func TestAMQPConsumer_FailedAnalysisIsReportedNotAcked(t *testing.T) {
	// No image classifier configured, so every image analysis fails.
	svc := service.NewDetectionService(service.Options{})
	failures := &recordingFailures{}
	consumer := NewAMQPConsumer(svc, validator.New(), failures, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)

	ack := &fakeAcknowledger{}
	consumer.Handle(ctx, delivery(t, ack, 7, messaging.RoutingKeyAnalysisRequested, messaging.AnalysisRequest{
		RequestID: "req-7",
		ClientID:  "worker-test",
		Action:    messaging.ActionAnalyze,
		Type:      "image",
		Content:   pngHeader,
		FileName:  "shot.png",
	}))
	stopConsumer(t, consumer)

	assert.Empty(t, ack.acked)
	assert.Empty(t, ack.requeued)
	assert.Equal(t, []uint64{7}, ack.nacked)
	assert.Equal(t, "analysis service unavailable, please try again later", failures.reasons["req-7"])
	assert.Equal(t, 0, svc.History("worker-test").AnalysisCount)
}

func TestAMQPConsumer_RequeuesWhenWorkersHaveStopped(t *testing.T) {
	svc := service.NewDetectionService(service.Options{})
	consumer := NewAMQPConsumer(svc, validator.New(), nil, 2, 4)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	cancelWorkers()
	consumer.Start(workerCtx)

	ack := &fakeAcknowledger{}
	consumer.Handle(context.Background(), delivery(t, ack, 9, messaging.RoutingKeyAnalysisRequested, messaging.AnalysisRequest{
		ClientID: "worker-test",
		Action:   messaging.ActionAnalyze,
		Type:     "text",
		Content:  scamText,
	}))
	stopConsumer(t, consumer)

	assert.Empty(t, ack.acked)
	assert.Empty(t, ack.nacked)
	assert.Equal(t, []uint64{9}, ack.requeued)
	assert.Equal(t, 0, svc.History("worker-test").AnalysisCount)
}

func TestAMQPConsumer_RequeuesOnCancelledDelivery(t *testing.T) {
	consumer := NewAMQPConsumer(service.NewDetectionService(service.Options{}), validator.New(), nil, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &fakeAcknowledger{}
	consumer.Handle(ctx, delivery(t, ack, 3, messaging.RoutingKeyAnalysisRequested, messaging.AnalysisRequest{
		Action:  messaging.ActionAnalyze,
		Type:    "text",
		Content: scamText,
	}))

	assert.Equal(t, []uint64{3}, ack.requeued)
	assert.Empty(t, ack.acked)
}
