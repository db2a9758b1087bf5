package replication

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sequinstream/sequin-go/pkg/assembler"
	"github.com/sequinstream/sequin-go/pkg/decoder"
	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/router"
	"github.com/sequinstream/sequin-go/pkg/status"
	"github.com/sequinstream/sequin-go/pkg/store"
)

// SubscriptionSource supplies the current set of consumers and pipelines a
// slot routes changes to. Implementations may reload this from external
// config between calls, which is what lets consumer/pipeline definitions
// change without restarting the session.
type SubscriptionSource interface {
	Consumers(ctx context.Context) ([]router.Consumer, error)
	Pipelines(ctx context.Context) ([]router.Pipeline, error)
}

// MessageHandler processes one assembled, committed transaction.
type MessageHandler interface {
	HandleTransaction(ctx context.Context, slotID string, frame *assembler.TransactionFrame) error
}

// NoticeSink receives the Truncate/Type/Origin notices a transaction
// carries, so they reach a consumer instead of being silently dropped
// once the assembler has surfaced them.
type NoticeSink interface {
	HandleNotice(ctx context.Context, slotID string, commitLSN lsn.LSN, n assembler.Notice) error
}

// LoggingNoticeSink is the default NoticeSink: it logs each notice at
// info level rather than discarding it.
type LoggingNoticeSink struct {
	Log zerolog.Logger
}

// HandleNotice logs n.
func (s LoggingNoticeSink) HandleNotice(ctx context.Context, slotID string, commitLSN lsn.LSN, n assembler.Notice) error {
	evt := s.Log.Info().Str("slot_id", slotID).Str("commit_lsn", commitLSN.String())
	switch n.Kind {
	case decoder.KindTruncate:
		evt.Interface("relation_ids", n.Truncate.RelationIDs).Msg("truncate notice")
	case decoder.KindType:
		evt.Str("type_name", n.Type.Name).Uint32("type_oid", n.Type.DataTypeOID).Msg("type notice")
	case decoder.KindOrigin:
		evt.Str("origin", n.Origin.Name).Msg("origin notice")
	default:
		evt.Int("kind", int(n.Kind)).Msg("unrecognized notice")
	}
	return nil
}

// DefaultHandler is the stock pipeline: resolve the current subscription
// set, route every change in the transaction, dispatch any notices,
// persist the merged result, and record the slot's new status.
// Consumers/pipelines are re-resolved on every call so hot-reloaded config
// takes effect on the next transaction.
type DefaultHandler struct {
	Subs      SubscriptionSource
	Router    *router.Router
	Persistor *store.Persistor
	Status    *status.Registry
	Notices   NoticeSink
	Log       zerolog.Logger
}

// NewDefaultHandler builds a DefaultHandler with LoggingNoticeSink as its
// NoticeSink; set the Notices field directly to route notices elsewhere.
func NewDefaultHandler(subs SubscriptionSource, r *router.Router, p *store.Persistor, st *status.Registry, log zerolog.Logger) *DefaultHandler {
	logger := log.With().Str("component", "handler").Logger()
	return &DefaultHandler{Subs: subs, Router: r, Persistor: p, Status: st, Notices: LoggingNoticeSink{Log: logger}, Log: logger}
}

// HandleTransaction dispatches frame's notices, routes and persists its
// changes, then advances the slot's recorded status to frame's commit
// point.
func (h *DefaultHandler) HandleTransaction(ctx context.Context, slotID string, frame *assembler.TransactionFrame) error {
	for _, n := range frame.Notices {
		if err := h.Notices.HandleNotice(ctx, slotID, frame.CommitLSN, n); err != nil {
			return fmt.Errorf("replication: handle notice at %s: %w", frame.CommitLSN, err)
		}
	}

	if len(frame.Changes) == 0 {
		h.Status.RecordCommit(slotID, frame.CommitLSN, frame.CommitTS, 0)
		return nil
	}

	consumers, err := h.Subs.Consumers(ctx)
	if err != nil {
		return fmt.Errorf("replication: load consumers: %w", err)
	}
	pipelines, err := h.Subs.Pipelines(ctx)
	if err != nil {
		return fmt.Errorf("replication: load pipelines: %w", err)
	}

	var merged router.RouteResult
	var lastSeq uint64
	for _, change := range frame.Changes {
		result := h.Router.Route(change, consumers, pipelines)
		merged.ConsumerEvents = append(merged.ConsumerEvents, result.ConsumerEvents...)
		merged.ConsumerRecordUpserts = append(merged.ConsumerRecordUpserts, result.ConsumerRecordUpserts...)
		merged.ConsumerRecordDeletes = append(merged.ConsumerRecordDeletes, result.ConsumerRecordDeletes...)
		merged.WalEvents = append(merged.WalEvents, result.WalEvents...)
		merged.Filtered = append(merged.Filtered, result.Filtered...)
		if change.Seq > lastSeq {
			lastSeq = change.Seq
		}
	}

	n, err := h.Persistor.Persist(ctx, merged, lastSeq)
	if err != nil {
		return fmt.Errorf("replication: persist transaction at %s: %w", frame.CommitLSN, err)
	}

	h.Status.RecordCommit(slotID, frame.CommitLSN, frame.CommitTS, lastSeq)
	h.Log.Debug().
		Str("slot_id", slotID).
		Str("commit_lsn", frame.CommitLSN.String()).
		Int("persisted", n).
		Int("filtered", len(merged.Filtered)).
		Msg("transaction persisted")
	return nil
}
