// Package memstore is an in-memory EventStore reference implementation,
// using the same per-key-map-with-mutex shape as a materialized table. It
// exists for tests and local demos, not production use.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sequinstream/sequin-go/pkg/router"
)

// Store is a mutex-guarded, in-memory EventStore. The zero value is not
// usable; construct with New.
type Store struct {
	mu sync.Mutex

	consumerEvents   map[string]router.ConsumerEvent
	consumerRecords  map[string]router.ConsumerRecordUpsert
	walEvents        []router.WalEvent
	lastProcessedSeq map[string]uint64
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		consumerEvents:   make(map[string]router.ConsumerEvent),
		consumerRecords:  make(map[string]router.ConsumerRecordUpsert),
		lastProcessedSeq: make(map[string]uint64),
	}
}

// eventKey is the event's idempotency key: (consumer_id, commit_lsn, seq).
// Replaying the same WAL range produces the same key and overwrites
// rather than duplicates.
func eventKey(e router.ConsumerEvent) string {
	return fmt.Sprintf("%s|%s|%d", e.ConsumerID, e.CommitLSN, e.Seq)
}

// recordKey is a materialized record's natural key: (consumer_id,
// table_oid, pks) — independent of commit_lsn/seq, since a record upsert
// represents the row's current state, not a log entry.
func recordKey(consumerID string, tableOID uint32, pks []any) string {
	return fmt.Sprintf("%s|%d|%v", consumerID, tableOID, pks)
}

func (s *Store) InsertConsumerEvents(ctx context.Context, events []router.ConsumerEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.consumerEvents[eventKey(e)] = e
	}
	return len(events), nil
}

func (s *Store) InsertConsumerRecords(ctx context.Context, records []router.ConsumerRecordUpsert) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.consumerRecords[recordKey(r.ConsumerID, r.TableOID, r.PKs)] = r
	}
	return len(records), nil
}

func (s *Store) DeleteConsumerRecords(ctx context.Context, deletes []router.ConsumerRecordDelete) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range deletes {
		key := recordKey(d.ConsumerID, d.TableOID, d.PKs)
		if _, ok := s.consumerRecords[key]; ok {
			delete(s.consumerRecords, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertWalEvents(ctx context.Context, events []router.WalEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walEvents = append(s.walEvents, events...)
	return len(events), nil
}

func (s *Store) PutLastProcessedSeq(ctx context.Context, slotID string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProcessedSeq[slotID] = seq
	return nil
}

// Transact runs fn directly: memstore has no rollback log, so a fn that
// returns an error may leave partial writes in place. Tests that need
// rollback semantics should assert against a store that fails before any
// writes, not mid-batch.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ConsumerEvents returns a snapshot of stored events, for test assertions.
func (s *Store) ConsumerEvents() []router.ConsumerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]router.ConsumerEvent, 0, len(s.consumerEvents))
	for _, e := range s.consumerEvents {
		out = append(out, e)
	}
	return out
}

// ConsumerRecords returns a snapshot of materialized records, for test
// assertions.
func (s *Store) ConsumerRecords() []router.ConsumerRecordUpsert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]router.ConsumerRecordUpsert, 0, len(s.consumerRecords))
	for _, r := range s.consumerRecords {
		out = append(out, r)
	}
	return out
}

// WalEvents returns a snapshot of stored WAL events, for test assertions.
func (s *Store) WalEvents() []router.WalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]router.WalEvent(nil), s.walEvents...)
}

// LastProcessedSeq returns the last seq recorded for slotID.
func (s *Store) LastProcessedSeq(slotID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProcessedSeq[slotID]
}
