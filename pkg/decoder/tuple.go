package decoder

// ColumnKind discriminates how a TupleColumn's value was transmitted.
type ColumnKind byte

const (
	// ColumnNull is an SQL NULL value ('n' on the wire).
	ColumnNull ColumnKind = 'n'
	// ColumnUnchangedTOAST marks a TOASTed column that was not sent because
	// it is unchanged from the previous value ('u' on the wire). Callers
	// must not treat this as NULL or empty — the value is simply absent.
	ColumnUnchangedTOAST ColumnKind = 'u'
	// ColumnText carries the column's value as its text-output-function
	// representation ('t' on the wire).
	ColumnText ColumnKind = 't'
	// ColumnBinary carries the column's value in binary format ('b' on the
	// wire). pgoutput protocol version 1 never emits this, but the tag is
	// reserved on the wire format and decoded defensively.
	ColumnBinary ColumnKind = 'b'
)

// TupleColumn is one column's value within a TupleData.
type TupleColumn struct {
	Kind ColumnKind
	Data []byte
}

// TupleData is an ordered row image: ncols entries, positionally aligned
// with the owning RelationMessage's Columns.
type TupleData struct {
	Columns []TupleColumn
}
