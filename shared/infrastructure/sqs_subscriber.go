package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"github.com/relaymart/order-system/shared/events"
	"github.com/relaymart/order-system/shared/models"
)

const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
)

type sqsDelivery struct {
	receiptHandle string
	event         *events.Event
}

// SQSEventSubscriber consumes saga lifecycle events from an SQS queue and
// dispatches them to a handler. A reader goroutine long-polls the queue and
// feeds a small worker pool; handled messages are deleted by a cleaner.
type SQSEventSubscriber struct {
	client    *sqs.Client
	queueURL  string
	logger    *slog.Logger
	workers   int
	running   atomic.Bool
	cancel    context.CancelFunc
	inbound   chan *sqsDelivery
	processed chan *sqsDelivery
}

// SQSSubscriberOption customizes the subscriber.
type SQSSubscriberOption func(*SQSEventSubscriber)

// WithWorkers sets the number of handler goroutines.
func WithWorkers(workers int) SQSSubscriberOption {
	return func(s *SQSEventSubscriber) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// NewSQSEventSubscriber creates a subscriber on an existing SQS client.
func NewSQSEventSubscriber(client *sqs.Client, queueURL string, logger *slog.Logger, opts ...SQSSubscriberOption) *SQSEventSubscriber {
	s := &SQSEventSubscriber{
		client:    client,
		queueURL:  queueURL,
		logger:    logger,
		workers:   4,
		inbound:   make(chan *sqsDelivery, 10),
		processed: make(chan *sqsDelivery, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSQSEventSubscriberFromConfig loads the default AWS config and builds a
// subscriber.
func NewSQSEventSubscriberFromConfig(ctx context.Context, queueURL string, logger *slog.Logger, opts ...SQSSubscriberOption) (*SQSEventSubscriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return NewSQSEventSubscriber(sqs.NewFromConfig(cfg), queueURL, logger, opts...), nil
}

// Subscribe starts consuming and blocks until ctx is cancelled.
func (s *SQSEventSubscriber) Subscribe(ctx context.Context, handler events.EventHandler) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("subscriber is already running")
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	for i := 0; i < s.workers; i++ {
		go s.work(ctx, handler)
	}
	go s.clean(ctx)

	s.read(ctx)
	return ctx.Err()
}

// Close stops the consume loop.
func (s *SQSEventSubscriber) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *SQSEventSubscriber) read(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(s.queueURL),
			MaxNumberOfMessages:   5,
			WaitTimeSeconds:       15,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("sqs receive failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, message := range output.Messages {
			event, err := decodeSQSBody(*message.Body)
			if err != nil {
				s.logger.Warn("skipping malformed sqs message", "message_id", aws.ToString(message.MessageId), "error", err)
				continue
			}

			event.WithMetadata(SQSMessageIDKey, aws.ToString(message.MessageId))
			if message.ReceiptHandle != nil {
				event.WithMetadata(SQSReceiptHandleKey, *message.ReceiptHandle)
			}

			select {
			case s.inbound <- &sqsDelivery{receiptHandle: aws.ToString(message.ReceiptHandle), event: event}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *SQSEventSubscriber) work(ctx context.Context, handler events.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-s.inbound:
			if delivery == nil {
				continue
			}
			if err := handler.Handle(ctx, delivery.event); err != nil {
				// Message stays on the queue and becomes visible again.
				s.logger.Error("event handler failed",
					"handler", handler.HandlerID(),
					"event_type", delivery.event.EventType,
					"error", err,
				)
				continue
			}
			select {
			case s.processed <- delivery:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *SQSEventSubscriber) clean(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-s.processed:
			if delivery == nil || delivery.receiptHandle == "" {
				continue
			}
			_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: aws.String(delivery.receiptHandle),
			})
			if err != nil && ctx.Err() == nil {
				s.logger.Error("sqs delete failed", "error", err)
			}
		}
	}
}

// decodeSQSBody accepts both the SNS fan-out envelope shape and a raw event.
func decodeSQSBody(body string) (*events.Event, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.EventType != "" {
		event := &events.Event{
			ID:        models.ID(envelope.ID),
			EventType: envelope.EventType,
			Metadata:  envelope.Metadata,
			Timestamp: envelope.Timestamp,
			Data:      envelope.Payload,
		}
		if event.Metadata == nil {
			event.Metadata = make(events.Metadata)
		}
		return event, nil
	}

	event, err := events.FromJSON([]byte(body))
	if err != nil {
		return nil, errors.Wrap(err, "undecodable message body")
	}
	if event.Metadata == nil {
		event.Metadata = make(events.Metadata)
	}
	return event, nil
}
