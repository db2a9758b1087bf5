// Package assembler buffers the row changes of an in-progress transaction
// between Begin and Commit, enriches them against the relation cache, and
// emits one ordered TransactionFrame per committed transaction.
package assembler

import "github.com/sequinstream/sequin-go/pkg/decoder"

// ChangeKind discriminates the concrete RowChange variant.
type ChangeKind int

const (
	ChangeKindInsert ChangeKind = iota
	ChangeKindUpdate
	ChangeKindDelete
)

// RowChange is implemented by every buffered row-change variant.
type RowChange interface {
	ChangeKind() ChangeKind
	RelationOID() uint32
}

// InsertChange is a buffered row insertion.
type InsertChange struct {
	OID uint32
	New decoder.TupleData
}

func (c InsertChange) ChangeKind() ChangeKind { return ChangeKindInsert }
func (c InsertChange) RelationOID() uint32    { return c.OID }

// UpdateChange is a buffered row update. Old is non-nil only under
// REPLICA IDENTITY FULL (full old row) or INDEX/DEFAULT when the key
// columns changed.
type UpdateChange struct {
	OID      uint32
	Old      *decoder.TupleData
	OldIsKey bool
	New      decoder.TupleData
}

func (c UpdateChange) ChangeKind() ChangeKind { return ChangeKindUpdate }
func (c UpdateChange) RelationOID() uint32    { return c.OID }

// DeleteChange is a buffered row deletion. Old carries either the full old
// row (REPLICA IDENTITY FULL) or just the primary-key columns (DEFAULT).
type DeleteChange struct {
	OID      uint32
	Old      decoder.TupleData
	OldIsKey bool
}

func (c DeleteChange) ChangeKind() ChangeKind { return ChangeKindDelete }
func (c DeleteChange) RelationOID() uint32    { return c.OID }
