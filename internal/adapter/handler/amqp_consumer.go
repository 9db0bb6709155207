package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/messaging"
	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var errConsumerStopped = errors.New("consumer stopped")

// FailurePublisher tells requesters about analyses that failed.
// *messaging.Publisher implements it.
type FailurePublisher interface {
	PublishAnalysisFailure(ctx context.Context, req messaging.AnalysisRequest, reason string) error
}

// analysisJob is acked or nacked by the worker that runs it.
type analysisJob struct {
	request  messaging.AnalysisRequest
	delivery *amqp.Delivery
}

// AMQPConsumer turns analysis requests from the queue into detection calls.
// Results leave through the detection service's event publisher; failures
// through the FailurePublisher.
type AMQPConsumer struct {
	detector   Detector
	validate   *validator.Validate
	failures   FailurePublisher
	jobQueue   chan analysisJob
	wg         sync.WaitGroup
	numWorkers int

	mu       sync.RWMutex // guards stopped and sends on jobQueue
	stopped  bool
	halted   chan struct{} // closed once workers stop taking jobs
	haltOnce sync.Once
}

// NewAMQPConsumer builds a consumer. failures may be nil.
func NewAMQPConsumer(detector Detector, validate *validator.Validate, failures FailurePublisher, numWorkers int, queueSize int) *AMQPConsumer {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &AMQPConsumer{
		detector:   detector,
		validate:   validate,
		failures:   failures,
		jobQueue:   make(chan analysisJob, queueSize),
		numWorkers: numWorkers,
		halted:     make(chan struct{}),
	}
}

// Start launches the worker pool. Call this before consuming messages.
func (c *AMQPConsumer) Start(ctx context.Context) {
	for i := range c.numWorkers {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}
	log.Infof("Started %d analysis workers", c.numWorkers)
}

// Stop closes the job queue and waits for in-flight jobs until ctx is done.
// Queued jobs still pending when the workers' context ends are requeued.
func (c *AMQPConsumer) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.jobQueue)
	}
	c.mu.Unlock()

	workersDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		log.Info("All analysis workers stopped after drain")
	case <-ctx.Done():
		log.Warn("Analysis workers did not drain before shutdown deadline")
	}
}

func (c *AMQPConsumer) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			log.Warnf("[AnalysisWorker %d] Context cancelled, stopping", workerID)
			c.halt()
			return
		}
		select {
		case <-ctx.Done():
			log.Warnf("[AnalysisWorker %d] Context cancelled, stopping", workerID)
			c.halt()
			return
		case job, ok := <-c.jobQueue:
			if !ok {
				log.Infof("[AnalysisWorker %d] Queue closed, stopping", workerID)
				return
			}
			c.process(ctx, job)
		}
	}
}

// halt stops new jobs from being queued and hands every queued job back to
// the broker.
func (c *AMQPConsumer) halt() {
	c.haltOnce.Do(func() { close(c.halted) })

	// Senders blocked on a full queue see halted and release the read lock.
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	for {
		select {
		case job, ok := <-c.jobQueue:
			if !ok {
				return
			}
			requeue(job.delivery)
		default:
			return
		}
	}
}

func (c *AMQPConsumer) process(ctx context.Context, job analysisJob) {
	if ctx.Err() != nil {
		requeue(job.delivery)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	req := job.request
	rec, err := analyze(jobCtx, c.detector, req.ClientID, domain.InputKind(req.Type), req.Content, req.FileName)
	if err == nil {
		vendor.RecordAnalysis(rec)
		job.delivery.Ack(false)
		return
	}

	fields := log.Fields{
		"requestId": req.RequestID,
		"type":      req.Type,
		"error":     err,
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		log.WithFields(fields).Warn("Queued analysis interrupted, requeueing")
		requeue(job.delivery)
		return
	}

	log.WithFields(fields).Error("Queued analysis failed")
	if c.failures != nil {
		_, reason := errorStatus(err)
		if perr := c.failures.PublishAnalysisFailure(ctx, req, reason); perr != nil {
			log.WithError(perr).Warn("Failed to publish analysis failure")
		}
	}
	job.delivery.Nack(false, false)
}

func requeue(d *amqp.Delivery) {
	d.Nack(false, true) // back to the queue for the next worker
}

// Handle queues a valid request for the worker pool, which acks it once the
// analysis is done. Everything else is settled here.
func (c *AMQPConsumer) Handle(ctx context.Context, delivery *amqp.Delivery) {
	if delivery.RoutingKey != messaging.RoutingKeyAnalysisRequested {
		log.Errorf("unsupported routing key %s", delivery.RoutingKey)
		delivery.Ack(false)
		return
	}

	err := c.handleAnalysisRequested(ctx, delivery)
	switch {
	case err == nil:
	case errors.Is(err, errConsumerStopped) || ctx.Err() != nil:
		requeue(delivery)
	default:
		delivery.Nack(false, false)
	}
}

func (c *AMQPConsumer) handleAnalysisRequested(ctx context.Context, delivery *amqp.Delivery) error {
	var req messaging.AnalysisRequest

	if err := json.Unmarshal(delivery.Body, &req); err != nil {
		log.Errorf("failed to unmarshal analysis request: %v", err)
		return err
	}

	if err := c.validate.Struct(req); err != nil {
		log.Errorf("analysis request validation failed: %v", err)
		return err
	}

	log.WithFields(log.Fields{
		"requestId": req.RequestID,
		"clientId":  req.ClientID,
		"type":      req.Type,
	}).Info("Received analysis request")

	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return errConsumerStopped
	}

	// Blocks when the queue is full, which is the backpressure.
	select {
	case c.jobQueue <- analysisJob{request: req, delivery: delivery}:
		return nil
	case <-c.halted:
		return errConsumerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
