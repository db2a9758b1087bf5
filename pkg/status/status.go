// Package status tracks each slot's last-committed-at time, commit LSN and
// processed seq in a process-wide, in-memory registry keyed by slot id.
// Entries are not persisted, and they are not removed when a replication
// session ends.
package status

import (
	"sync"
	"time"

	"github.com/sequinstream/sequin-go/pkg/lsn"
)

// SlotStatus is a point-in-time snapshot of one slot's progress.
type SlotStatus struct {
	SlotID           string
	LastCommittedAt  time.Time
	LastCommitLSN    lsn.LSN
	LastProcessedSeq uint64
}

// Registry is a mutex-guarded, process-wide map of slot id to its latest
// SlotStatus. The zero value is ready to use.
type Registry struct {
	mu     sync.RWMutex
	bySlot map[string]SlotStatus
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bySlot: make(map[string]SlotStatus)}
}

// RecordCommit updates slotID's status after a transaction has been
// durably persisted, before its ack is sent upstream.
func (r *Registry) RecordCommit(slotID string, commitLSN lsn.LSN, committedAt time.Time, processedSeq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bySlot == nil {
		r.bySlot = make(map[string]SlotStatus)
	}
	r.bySlot[slotID] = SlotStatus{
		SlotID:           slotID,
		LastCommittedAt:  committedAt,
		LastCommitLSN:    commitLSN,
		LastProcessedSeq: processedSeq,
	}
}

// Get returns the current status for slotID, if any commit has been
// recorded for it yet.
func (r *Registry) Get(slotID string) (SlotStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySlot[slotID]
	return s, ok
}

// Snapshot returns every tracked slot's status.
func (r *Registry) Snapshot() []SlotStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SlotStatus, 0, len(r.bySlot))
	for _, s := range r.bySlot {
		out = append(out, s)
	}
	return out
}
