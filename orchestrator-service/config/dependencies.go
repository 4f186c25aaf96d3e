package config

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/relaymart/order-system/orchestrator-service/application"
	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/orchestrator-service/handlers"
	"github.com/relaymart/order-system/orchestrator-service/infrastructure"
	"github.com/relaymart/order-system/shared/events"
	sharedinfra "github.com/relaymart/order-system/shared/infrastructure"
)

type Dependencies struct {
	// Database (nil when the memory store is used)
	DB *sqlx.DB

	// Stores
	OrderStore domain.OrderStore

	// Participant clients
	PaymentClient   *infrastructure.HTTPParticipantClient
	InventoryClient *infrastructure.HTTPParticipantClient
	DeliveryClient  *infrastructure.HTTPParticipantClient

	// Use cases
	RunOrderSaga *application.RunOrderSaga
	GetOrder     *application.GetOrder

	// HTTP handlers
	OrderHandlers *handlers.OrderHandlers

	// Event infrastructure
	EventPublisher  events.Publisher
	EventSubscriber events.Subscriber
	AuditHandlers   *handlers.SagaAuditHandlers

	closers []func() error
}

// BuildDependencies wires the orchestrator from config.
func BuildDependencies(ctx context.Context, cfg *Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	if err := deps.buildOrderStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := deps.buildEventInfrastructure(ctx, cfg, logger); err != nil {
		return nil, err
	}

	timeout := cfg.Participants.Timeout()
	deps.PaymentClient = infrastructure.NewPaymentClient(cfg.Participants.PaymentURL, timeout)
	deps.InventoryClient = infrastructure.NewInventoryClient(cfg.Participants.InventoryURL, timeout)
	deps.DeliveryClient = infrastructure.NewDeliveryClient(cfg.Participants.DeliveryURL, timeout)

	deps.RunOrderSaga = application.NewRunOrderSaga(
		[]domain.ParticipantClient{deps.PaymentClient, deps.InventoryClient, deps.DeliveryClient},
		deps.OrderStore,
		deps.EventPublisher,
		logger,
	)
	deps.GetOrder = application.NewGetOrder(deps.OrderStore)

	deps.OrderHandlers = handlers.NewOrderHandlers(deps.RunOrderSaga, deps.GetOrder)
	deps.AuditHandlers = handlers.NewSagaAuditHandlers(logger)

	return deps, nil
}

func (d *Dependencies) buildOrderStore(ctx context.Context, cfg *Config) error {
	switch cfg.Store.Driver {
	case "", "memory":
		store := infrastructure.NewMemoryOrderStore()
		d.OrderStore = store
		d.closers = append(d.closers, store.Close)
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
		if err != nil {
			return errors.Wrap(err, "failed to connect to database")
		}
		store, err := infrastructure.NewPostgresOrderStoreWithSchema(ctx, db)
		if err != nil {
			db.Close()
			return errors.Wrap(err, "failed to initialize order store schema")
		}
		d.DB = db
		d.OrderStore = store
		d.closers = append(d.closers, db.Close)
	default:
		return errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

func (d *Dependencies) buildEventInfrastructure(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	switch cfg.Events.Driver {
	case "", "memory":
		bus := sharedinfra.NewMemoryBus()
		d.EventPublisher = bus
		d.EventSubscriber = bus
		d.closers = append(d.closers, bus.Close)
	case "sns":
		publisher, err := sharedinfra.NewSNSEventPublisherFromConfig(ctx, cfg.Events.SNSTopicArn)
		if err != nil {
			return errors.Wrap(err, "failed to create SNS publisher")
		}
		subscriber, err := sharedinfra.NewSQSEventSubscriberFromConfig(ctx, cfg.Events.SQSQueueURL, logger)
		if err != nil {
			return errors.Wrap(err, "failed to create SQS subscriber")
		}
		d.EventPublisher = publisher
		d.EventSubscriber = subscriber
		d.closers = append(d.closers, publisher.Close, subscriber.Close)
	default:
		return errors.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
	return nil
}

// Close closes all dependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for _, closer := range d.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("errors closing dependencies: %v", errs)
	}
	return nil
}
