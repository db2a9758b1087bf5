package assembler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sequinstream/sequin-go/pkg/decoder"
	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/relation"
)

// State is one of the assembler's three session states.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Assembler buffers row changes between Begin and Commit for one
// replication session and emits one TransactionFrame per committed
// transaction. It is not safe for concurrent use; a session drives it
// from a single goroutine.
type Assembler struct {
	relations *relation.Cache

	state    State
	fatalErr error

	xid      uint32
	beginLSN uint64
	beginTS  decoder.BeginMessage
	buffered []RowChange
	notices  []Notice

	nextSeq uint64
}

// New builds an Assembler against the given relation cache, starting in
// the Idle state.
func New(relations *relation.Cache) *Assembler {
	return &Assembler{relations: relations, state: StateIdle}
}

// State reports the assembler's current session state.
func (a *Assembler) State() State { return a.state }

// Feed processes one decoded logical message. It returns a non-nil
// TransactionFrame exactly when msg is the Commit that closes the
// transaction currently open; all other message kinds return a nil
// frame. Once Feed returns a *ProtocolError, the assembler is Fatal and
// every subsequent call returns that same error: the owning session must
// reconnect.
func (a *Assembler) Feed(ctx context.Context, msg decoder.LogicalMessage) (*TransactionFrame, error) {
	if a.state == StateFatal {
		return nil, a.fatalErr
	}

	switch m := msg.(type) {
	case decoder.RelationMessage:
		if _, err := a.relations.Upsert(ctx, m); err != nil {
			return nil, fmt.Errorf("assembler: updating relation cache: %w", err)
		}
		return nil, nil

	case decoder.BeginMessage:
		return nil, a.begin(m)

	case decoder.InsertMessage:
		return nil, a.bufferRow(InsertChange{OID: m.RelationID, New: m.Tuple})

	case decoder.UpdateMessage:
		return nil, a.bufferRow(UpdateChange{OID: m.RelationID, Old: m.OldTuple, OldIsKey: m.OldIsKey, New: m.NewTuple})

	case decoder.DeleteMessage:
		return nil, a.bufferRow(DeleteChange{OID: m.RelationID, Old: m.OldTuple, OldIsKey: m.OldIsKey})

	case decoder.TruncateMessage:
		return nil, a.bufferNotice(Notice{Kind: decoder.KindTruncate, Truncate: &m})

	case decoder.TypeMessage:
		return nil, a.bufferNotice(Notice{Kind: decoder.KindType, Type: &m})

	case decoder.OriginMessage:
		return nil, a.bufferNotice(Notice{Kind: decoder.KindOrigin, Origin: &m})

	case decoder.CommitMessage:
		return a.commit(m)

	default:
		return nil, fmt.Errorf("assembler: unhandled message type %T", msg)
	}
}

func (a *Assembler) begin(m decoder.BeginMessage) error {
	if a.state != StateIdle {
		return a.fail(&ProtocolError{Reason: fmt.Sprintf("Begin received while session was %s, not idle", a.state)})
	}
	a.state = StateOpen
	a.xid = m.Xid
	a.beginLSN = m.FinalLSN
	a.beginTS = m
	a.buffered = a.buffered[:0]
	a.notices = a.notices[:0]
	return nil
}

func (a *Assembler) bufferRow(c RowChange) error {
	if a.state != StateOpen {
		return a.fail(&ProtocolError{Reason: fmt.Sprintf("row change received while session was %s, not open", a.state)})
	}
	a.buffered = append(a.buffered, c)
	return nil
}

func (a *Assembler) bufferNotice(n Notice) error {
	if a.state != StateOpen {
		return a.fail(&ProtocolError{Reason: fmt.Sprintf("%s received while session was %s, not open", n.Kind, a.state)})
	}
	a.notices = append(a.notices, n)
	return nil
}

// commit validates the Commit against the enclosing Begin, enriches the
// buffered row changes against the relation cache, assigns each a
// strictly increasing seq, and returns the resulting frame.
func (a *Assembler) commit(m decoder.CommitMessage) (*TransactionFrame, error) {
	if a.state != StateOpen {
		return nil, a.fail(&ProtocolError{Reason: fmt.Sprintf("Commit received while session was %s, not open", a.state)})
	}
	if m.CommitLSN != a.beginLSN || !m.CommitTS.Equal(a.beginTS.CommitTS) {
		return nil, a.fail(&ProtocolError{Reason: fmt.Sprintf(
			"Commit (lsn=%s, ts=%s) disagrees with enclosing Begin (lsn=%s, ts=%s)",
			lsn.LSN(m.CommitLSN), m.CommitTS, lsn.LSN(a.beginLSN), a.beginTS.CommitTS,
		)})
	}

	traceID := uuid.NewString()
	changes := make([]EnrichedChange, 0, len(a.buffered))
	for _, rc := range a.buffered {
		enriched, err := a.enrich(rc, m, traceID)
		if err != nil {
			return nil, err
		}
		a.nextSeq++
		enriched.Seq = a.nextSeq
		changes = append(changes, enriched)
	}

	frame := &TransactionFrame{
		Xid:       a.xid,
		CommitLSN: lsn.LSN(m.CommitLSN),
		CommitTS:  m.CommitTS,
		Changes:   changes,
		Notices:   append([]Notice(nil), a.notices...),
	}
	a.state = StateIdle
	return frame, nil
}

func (a *Assembler) enrich(rc RowChange, commit decoder.CommitMessage, traceID string) (EnrichedChange, error) {
	rel, ok := a.relations.Get(rc.RelationOID())
	if !ok {
		return EnrichedChange{}, fmt.Errorf("assembler: no cached relation for oid %d", rc.RelationOID())
	}

	ec := EnrichedChange{
		Action:    rc.ChangeKind(),
		Relation:  rel,
		CommitLSN: lsn.LSN(commit.CommitLSN),
		CommitTS:  commit.CommitTS,
		TraceID:   traceID,
	}

	switch c := rc.(type) {
	case InsertChange:
		ec.Record = tupleToRecord(rel, c.New)
		ec.Changes = map[string]any{}
		ec.IDs = primaryKeyValues(rel, ec.Record)

	case UpdateChange:
		ec.Record = tupleToRecord(rel, c.New)
		var oldRecord map[string]any
		if c.Old != nil {
			oldRecord = tupleToRecord(rel, *c.Old)
		}
		ec.Changes = diffColumns(oldRecord, ec.Record)
		ec.IDs = primaryKeyValues(rel, ec.Record)

	case DeleteChange:
		ec.OldRecord = tupleToRecord(rel, c.Old)
		ec.IDs = primaryKeyValues(rel, ec.OldRecord)

	default:
		return EnrichedChange{}, fmt.Errorf("assembler: unhandled row change type %T", rc)
	}

	return ec, nil
}

func (a *Assembler) fail(err error) error {
	a.state = StateFatal
	a.fatalErr = err
	return err
}
