package store

import (
	"context"
	"fmt"

	"github.com/sequinstream/sequin-go/pkg/router"
)

// maxBatchSize bounds every kind of bulk write at 1,000 rows.
const maxBatchSize = 1000

// Persistor writes one committed transaction's routed output through an
// EventStore in a fixed order (consumer events, then record upserts, then
// record deletes, then WAL events, then the seq cursor), and advances the
// slot's last-processed seq only on success.
type Persistor struct {
	store  EventStore
	slotID string
}

// NewPersistor builds a Persistor bound to slotID.
func NewPersistor(store EventStore, slotID string) *Persistor {
	return &Persistor{store: store, slotID: slotID}
}

// Persist writes result atomically: consumer events, then consumer record
// upserts, then consumer record deletes, then WAL events, then the
// slot's last-processed seq. On any failure the whole write rolls back
// and the caller must not advance the acknowledged LSN.
func (p *Persistor) Persist(ctx context.Context, result router.RouteResult, seq uint64) (int, error) {
	var total int

	err := p.store.Transact(ctx, func(ctx context.Context) error {
		total = 0

		for _, batch := range chunk(result.ConsumerEvents, maxBatchSize) {
			n, err := p.store.InsertConsumerEvents(ctx, batch)
			if err != nil {
				return fmt.Errorf("store: insert consumer events: %w", err)
			}
			total += n
		}

		for _, batch := range chunk(result.ConsumerRecordUpserts, maxBatchSize) {
			n, err := p.store.InsertConsumerRecords(ctx, batch)
			if err != nil {
				return fmt.Errorf("store: insert consumer records: %w", err)
			}
			total += n
		}

		for _, batch := range chunk(result.ConsumerRecordDeletes, maxBatchSize) {
			n, err := p.store.DeleteConsumerRecords(ctx, batch)
			if err != nil {
				return fmt.Errorf("store: delete consumer records: %w", err)
			}
			total += n
		}

		for _, batch := range chunk(result.WalEvents, maxBatchSize) {
			n, err := p.store.InsertWalEvents(ctx, batch)
			if err != nil {
				return fmt.Errorf("store: insert wal events: %w", err)
			}
			total += n
		}

		if err := p.store.PutLastProcessedSeq(ctx, p.slotID, seq); err != nil {
			return fmt.Errorf("store: put last processed seq: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
