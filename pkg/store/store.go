// Package store defines the durable collaborator contract the engine
// writes consumer and pipeline output through, and a Persistor that
// composes the ordered writes of one committed transaction into a single
// atomic unit.
package store

import (
	"context"

	"github.com/sequinstream/sequin-go/pkg/router"
)

// EventStore is the external collaborator contract a backing store
// implements. All writes made inside one Transact call must commit or roll back
// together.
type EventStore interface {
	InsertConsumerEvents(ctx context.Context, events []router.ConsumerEvent) (int, error)
	InsertConsumerRecords(ctx context.Context, records []router.ConsumerRecordUpsert) (int, error)
	DeleteConsumerRecords(ctx context.Context, deletes []router.ConsumerRecordDelete) (int, error)
	InsertWalEvents(ctx context.Context, events []router.WalEvent) (int, error)
	PutLastProcessedSeq(ctx context.Context, slotID string, seq uint64) error

	// Transact scopes fn's writes as one atomic unit.
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}
