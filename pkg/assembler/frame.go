package assembler

import (
	"time"

	"github.com/sequinstream/sequin-go/pkg/decoder"
	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/relation"
)

// EnrichedChange is a RowChange joined to its Relation, carrying the
// commit metadata and seq every dispatched change carries.
type EnrichedChange struct {
	Action    ChangeKind
	Relation  relation.Relation
	IDs       []any
	Record    map[string]any
	Changes   map[string]any
	OldRecord map[string]any
	CommitLSN lsn.LSN
	CommitTS  time.Time
	Seq       uint64
	TraceID   string
}

// Notice is a Truncate, Type, or Origin message observed inside a
// transaction. These are surfaced to the message handler rather than
// discarded silently.
type Notice struct {
	Kind     decoder.Kind
	Truncate *decoder.TruncateMessage
	Type     *decoder.TypeMessage
	Origin   *decoder.OriginMessage
}

// TransactionFrame is the ordered result of one committed transaction,
// ready for dispatch to the subscription router.
type TransactionFrame struct {
	Xid       uint32
	CommitLSN lsn.LSN
	CommitTS  time.Time
	Changes   []EnrichedChange
	Notices   []Notice
}
