package service

import (
	"context"

	"sqlsentry/audit"
	"sqlsentry/audit/bus"
)

// Store is the persistence contract the consumer writes report records
// to; see store.go for the Postgres implementation.
type Store interface {
	Upsert(ctx context.Context, r ReportRecord) error
}

// Consumer drains one application's partition queue, single-threaded
// (spec §5 "per-event processing is single-threaded within a partition
// to preserve ordering"), running the checker pool per event and
// persisting the aggregated record before acking.
type Consumer struct {
	Bus   *bus.Consumer
	Pool  *Pool
	Store Store
	Log   audit.Logger
}

// NewConsumer builds a Consumer bound to one partition's bus connection.
func NewConsumer(b *bus.Consumer, pool *Pool, store Store, log audit.Logger) *Consumer {
	if log == nil {
		log = audit.Discard{}
	}
	return &Consumer{Bus: b, Pool: pool, Store: store, Log: log}
}

// Run processes deliveries until ctx is cancelled or the bus channel
// closes. Acks happen strictly in delivery order: the next delivery is
// not read until the current one's store write completes, which is what
// gives the partition its ordering guarantee.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.Bus.Consume(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg bus.RawMessage) {
	report := c.Pool.Run(ctx, msg.Event)
	if err := c.Store.Upsert(ctx, report); err != nil {
		c.Log.WithField("app", msg.Event.App).WithError(err).Error("audit service: failed to persist report")
		msg.Delivery.Nack(false, true)
		return
	}
	if err := msg.Delivery.Ack(false); err != nil {
		c.Log.WithField("app", msg.Event.App).WithError(err).Error("audit service: failed to ack delivery")
	}
}
