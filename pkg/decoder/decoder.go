package decoder

import (
	"encoding/binary"
	"fmt"
)

// DecodeError reports a malformed logical message, naming the byte offset
// at which decoding failed.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder: at offset %d: %s", e.Offset, e.Reason)
}

// reader is a small positional cursor over a logical-message payload. It
// exists so DecodeError can report the offset each failure occurred at,
// rather than just "message too short".
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return &DecodeError{Offset: r.pos, Reason: fmt.Sprintf("need %d bytes, have %d", n, r.remaining())}
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) cstring() (string, error) {
	start := r.pos
	for r.pos < len(r.buf) {
		if r.buf[r.pos] == 0 {
			s := string(r.buf[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", &DecodeError{Offset: start, Reason: "unterminated cstring"}
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Decode parses the pgoutput protocol-version-1 body carried in an
// XLogData frame's Data field into a LogicalMessage.
func Decode(payload []byte) (LogicalMessage, error) {
	r := &reader{buf: payload}
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case 'B':
		return decodeBegin(r)
	case 'C':
		return decodeCommit(r)
	case 'R':
		return decodeRelation(r)
	case 'I':
		return decodeInsert(r)
	case 'U':
		return decodeUpdate(r)
	case 'D':
		return decodeDelete(r)
	case 'T':
		return decodeTruncate(r)
	case 'Y':
		return decodeType(r)
	case 'O':
		return decodeOrigin(r)
	default:
		return nil, &DecodeError{Offset: 0, Reason: fmt.Sprintf("unknown message tag %q", tag)}
	}
}

func decodeBegin(r *reader) (BeginMessage, error) {
	finalLSN, err := r.uint64()
	if err != nil {
		return BeginMessage{}, err
	}
	commitTS, err := r.uint64()
	if err != nil {
		return BeginMessage{}, err
	}
	xid, err := r.uint32()
	if err != nil {
		return BeginMessage{}, err
	}
	return BeginMessage{
		FinalLSN: finalLSN,
		CommitTS: microsSincePG2000(int64(commitTS)),
		Xid:      xid,
	}, nil
}

func decodeCommit(r *reader) (CommitMessage, error) {
	flags, err := r.byte()
	if err != nil {
		return CommitMessage{}, err
	}
	commitLSN, err := r.uint64()
	if err != nil {
		return CommitMessage{}, err
	}
	endLSN, err := r.uint64()
	if err != nil {
		return CommitMessage{}, err
	}
	commitTS, err := r.uint64()
	if err != nil {
		return CommitMessage{}, err
	}
	return CommitMessage{
		Flags:     flags,
		CommitLSN: commitLSN,
		EndLSN:    endLSN,
		CommitTS:  microsSincePG2000(int64(commitTS)),
	}, nil
}

func decodeRelation(r *reader) (RelationMessage, error) {
	oid, err := r.uint32()
	if err != nil {
		return RelationMessage{}, err
	}
	ns, err := r.cstring()
	if err != nil {
		return RelationMessage{}, err
	}
	name, err := r.cstring()
	if err != nil {
		return RelationMessage{}, err
	}
	identity, err := r.byte()
	if err != nil {
		return RelationMessage{}, err
	}
	ncols, err := r.uint16()
	if err != nil {
		return RelationMessage{}, err
	}
	cols := make([]RelationColumn, 0, ncols)
	for i := 0; i < int(ncols); i++ {
		flags, err := r.byte()
		if err != nil {
			return RelationMessage{}, err
		}
		colName, err := r.cstring()
		if err != nil {
			return RelationMessage{}, err
		}
		typOID, err := r.uint32()
		if err != nil {
			return RelationMessage{}, err
		}
		atttypmod, err := r.int32()
		if err != nil {
			return RelationMessage{}, err
		}
		cols = append(cols, RelationColumn{
			Key:          flags&1 == 1,
			Name:         colName,
			DataTypeOID:  typOID,
			TypeModifier: atttypmod,
		})
	}
	return RelationMessage{
		RelationID:      oid,
		Namespace:       ns,
		RelationName:    name,
		ReplicaIdentity: ReplicaIdentity(identity),
		Columns:         cols,
	}, nil
}

func decodeTupleData(r *reader) (TupleData, error) {
	ncols, err := r.uint16()
	if err != nil {
		return TupleData{}, err
	}
	cols := make([]TupleColumn, 0, ncols)
	for i := 0; i < int(ncols); i++ {
		kind, err := r.byte()
		if err != nil {
			return TupleData{}, err
		}
		switch ColumnKind(kind) {
		case ColumnNull, ColumnUnchangedTOAST:
			cols = append(cols, TupleColumn{Kind: ColumnKind(kind)})
		case ColumnText, ColumnBinary:
			n, err := r.uint32()
			if err != nil {
				return TupleData{}, err
			}
			data, err := r.bytesN(int(n))
			if err != nil {
				return TupleData{}, err
			}
			cols = append(cols, TupleColumn{Kind: ColumnKind(kind), Data: data})
		default:
			return TupleData{}, &DecodeError{Offset: r.pos - 1, Reason: fmt.Sprintf("unknown column kind %q", kind)}
		}
	}
	return TupleData{Columns: cols}, nil
}

func decodeInsert(r *reader) (InsertMessage, error) {
	oid, err := r.uint32()
	if err != nil {
		return InsertMessage{}, err
	}
	tag, err := r.byte()
	if err != nil {
		return InsertMessage{}, err
	}
	if tag != 'N' {
		return InsertMessage{}, &DecodeError{Offset: r.pos - 1, Reason: fmt.Sprintf("expected 'N' tuple tag, got %q", tag)}
	}
	tuple, err := decodeTupleData(r)
	if err != nil {
		return InsertMessage{}, err
	}
	return InsertMessage{RelationID: oid, Tuple: tuple}, nil
}

func decodeUpdate(r *reader) (UpdateMessage, error) {
	oid, err := r.uint32()
	if err != nil {
		return UpdateMessage{}, err
	}
	tag, err := r.byte()
	if err != nil {
		return UpdateMessage{}, err
	}

	msg := UpdateMessage{RelationID: oid}
	switch tag {
	case 'K', 'O':
		old, err := decodeTupleData(r)
		if err != nil {
			return UpdateMessage{}, err
		}
		msg.OldTuple = &old
		msg.OldIsKey = tag == 'K'
		tag, err = r.byte()
		if err != nil {
			return UpdateMessage{}, err
		}
	}
	if tag != 'N' {
		return UpdateMessage{}, &DecodeError{Offset: r.pos - 1, Reason: fmt.Sprintf("expected 'N' tuple tag, got %q", tag)}
	}
	newTuple, err := decodeTupleData(r)
	if err != nil {
		return UpdateMessage{}, err
	}
	msg.NewTuple = newTuple
	return msg, nil
}

func decodeDelete(r *reader) (DeleteMessage, error) {
	oid, err := r.uint32()
	if err != nil {
		return DeleteMessage{}, err
	}
	tag, err := r.byte()
	if err != nil {
		return DeleteMessage{}, err
	}
	if tag != 'K' && tag != 'O' {
		return DeleteMessage{}, &DecodeError{Offset: r.pos - 1, Reason: fmt.Sprintf("expected 'K' or 'O' tuple tag, got %q", tag)}
	}
	old, err := decodeTupleData(r)
	if err != nil {
		return DeleteMessage{}, err
	}
	return DeleteMessage{RelationID: oid, OldTuple: old, OldIsKey: tag == 'K'}, nil
}

func decodeTruncate(r *reader) (TruncateMessage, error) {
	nrel, err := r.uint32()
	if err != nil {
		return TruncateMessage{}, err
	}
	flags, err := r.byte()
	if err != nil {
		return TruncateMessage{}, err
	}
	ids := make([]uint32, 0, nrel)
	for i := 0; i < int(nrel); i++ {
		oid, err := r.uint32()
		if err != nil {
			return TruncateMessage{}, err
		}
		ids = append(ids, oid)
	}
	return TruncateMessage{Flags: flags, RelationIDs: ids}, nil
}

func decodeType(r *reader) (TypeMessage, error) {
	oid, err := r.uint32()
	if err != nil {
		return TypeMessage{}, err
	}
	ns, err := r.cstring()
	if err != nil {
		return TypeMessage{}, err
	}
	name, err := r.cstring()
	if err != nil {
		return TypeMessage{}, err
	}
	return TypeMessage{DataTypeOID: oid, Namespace: ns, Name: name}, nil
}

func decodeOrigin(r *reader) (OriginMessage, error) {
	originLSN, err := r.uint64()
	if err != nil {
		return OriginMessage{}, err
	}
	name, err := r.cstring()
	if err != nil {
		return OriginMessage{}, err
	}
	return OriginMessage{OriginLSN: originLSN, Name: name}, nil
}
