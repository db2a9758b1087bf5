package router

import (
	"fmt"
	"strings"

	"github.com/sequinstream/sequin-go/pkg/assembler"
	"github.com/sequinstream/sequin-go/pkg/lsn"
)

// ConsumerEvent is one event-message-kind consumer match.
type ConsumerEvent struct {
	ConsumerID string
	TableOID   uint32
	Action     string
	Record     map[string]any
	CommitLSN  lsn.LSN
	Seq        uint64
	TraceID    string
}

// ConsumerRecordUpsert is a record-message-kind consumer match on a
// non-delete change.
type ConsumerRecordUpsert struct {
	ConsumerID string
	TableOID   uint32
	GroupID    string
	PKs        []any
	Record     map[string]any
	CommitLSN  lsn.LSN
	Seq        uint64
}

// ConsumerRecordDelete is a record-message-kind consumer match on a delete,
// keyed by (consumer_id, table_oid, pks).
type ConsumerRecordDelete struct {
	ConsumerID string
	TableOID   uint32
	PKs        []any
}

// WalEvent is a pipeline match.
type WalEvent struct {
	PipelineID string
	TableOID   uint32
	Action     string
	Record     map[string]any
	OldRecord  map[string]any
	Changes    map[string]any
	CommitLSN  lsn.LSN
	Seq        uint64
	TraceID    string
}

// Filtered is an observability-only trace of a consumer or pipeline that a
// change did not match.
type Filtered struct {
	SubscriberID string
	TableOID     uint32
	Seq          uint64
}

// RouteResult is everything one EnrichedChange produced across the
// subscription set.
type RouteResult struct {
	ConsumerEvents        []ConsumerEvent
	ConsumerRecordUpserts []ConsumerRecordUpsert
	ConsumerRecordDeletes []ConsumerRecordDelete
	WalEvents             []WalEvent
	Filtered              []Filtered
}

// Router evaluates consumer/pipeline predicates; it holds no state of its
// own; evaluation order across consumers and pipelines is unspecified and
// side effects must be commutative.
type Router struct{}

// New builds a Router.
func New() *Router { return &Router{} }

func actionName(a assembler.ChangeKind) string {
	switch a {
	case assembler.ChangeKindInsert:
		return actionInsert
	case assembler.ChangeKindUpdate:
		return actionUpdate
	case assembler.ChangeKindDelete:
		return actionDelete
	default:
		return ""
	}
}

// Route evaluates change against every consumer and pipeline, returning
// the set of sink-bound records to persist.
func (r *Router) Route(change assembler.EnrichedChange, consumers []Consumer, pipelines []Pipeline) RouteResult {
	action := actionName(change.Action)
	record := change.Record
	if change.Action == assembler.ChangeKindDelete {
		record = change.OldRecord
	}
	ctx := matchContext{
		Schema: change.Relation.Schema,
		Table:  change.Relation.Name,
		Action: action,
		Record: record,
	}

	var result RouteResult
	for _, c := range consumers {
		if !c.Predicate.matches(ctx) {
			result.Filtered = append(result.Filtered, Filtered{SubscriberID: c.ID, TableOID: change.Relation.OID, Seq: change.Seq})
			continue
		}

		switch c.MessageKind {
		case MessageKindEvent:
			result.ConsumerEvents = append(result.ConsumerEvents, ConsumerEvent{
				ConsumerID: c.ID,
				TableOID:   change.Relation.OID,
				Action:     action,
				Record:     record,
				CommitLSN:  change.CommitLSN,
				Seq:        change.Seq,
				TraceID:    change.TraceID,
			})

		case MessageKindRecord:
			if change.Action == assembler.ChangeKindDelete {
				result.ConsumerRecordDeletes = append(result.ConsumerRecordDeletes, ConsumerRecordDelete{
					ConsumerID: c.ID,
					TableOID:   change.Relation.OID,
					PKs:        change.IDs,
				})
				continue
			}
			result.ConsumerRecordUpserts = append(result.ConsumerRecordUpserts, ConsumerRecordUpsert{
				ConsumerID: c.ID,
				TableOID:   change.Relation.OID,
				GroupID:    groupID(c, change),
				PKs:        change.IDs,
				Record:     record,
				CommitLSN:  change.CommitLSN,
				Seq:        change.Seq,
			})
		}
	}

	for _, p := range pipelines {
		if !p.Predicate.matches(ctx) {
			result.Filtered = append(result.Filtered, Filtered{SubscriberID: p.ID, TableOID: change.Relation.OID, Seq: change.Seq})
			continue
		}
		result.WalEvents = append(result.WalEvents, WalEvent{
			PipelineID: p.ID,
			TableOID:   change.Relation.OID,
			Action:     action,
			Record:     change.Record,
			OldRecord:  change.OldRecord,
			Changes:    change.Changes,
			CommitLSN:  change.CommitLSN,
			Seq:        change.Seq,
			TraceID:    change.TraceID,
		})
	}

	return result
}

// groupID derives a consumer's record grouping key: the configured
// grouping columns joined by ",", falling back to the concatenated
// primary-key values.
func groupID(c Consumer, change assembler.EnrichedChange) string {
	if len(c.GroupColumns) == 0 {
		return joinValues(change.IDs)
	}
	parts := make([]string, 0, len(c.GroupColumns))
	for _, col := range c.GroupColumns {
		parts = append(parts, fmt.Sprintf("%v", change.Record[col]))
	}
	return strings.Join(parts, ",")
}

func joinValues(values []any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, ",")
}
