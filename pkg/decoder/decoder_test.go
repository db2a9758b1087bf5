package decoder_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/decoder"
)

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func textCol(s string) []byte {
	out := []byte{'t'}
	out = append(out, u32(uint32(len(s)))...)
	out = append(out, []byte(s)...)
	return out
}

func nullCol() []byte { return []byte{'n'} }

func TestDecodeBegin(t *testing.T) {
	payload := append([]byte{'B'}, u64(0x1A0)...)
	payload = append(payload, u64(0)...)
	payload = append(payload, u32(42)...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	begin, ok := msg.(decoder.BeginMessage)
	require.True(t, ok)
	require.Equal(t, uint64(0x1A0), begin.FinalLSN)
	require.Equal(t, uint32(42), begin.Xid)
	require.Equal(t, decoder.KindBegin, begin.Kind())
}

func TestDecodeCommit(t *testing.T) {
	payload := []byte{'C', 0}
	payload = append(payload, u64(0x1A0)...)
	payload = append(payload, u64(0x1A1)...)
	payload = append(payload, u64(0)...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	commit, ok := msg.(decoder.CommitMessage)
	require.True(t, ok)
	require.Equal(t, uint64(0x1A0), commit.CommitLSN)
	require.Equal(t, uint64(0x1A1), commit.EndLSN)
}

func buildRelation(oid uint32, identity byte) []byte {
	payload := append([]byte{'R'}, u32(oid)...)
	payload = append(payload, cstr("public")...)
	payload = append(payload, cstr("accounts")...)
	payload = append(payload, identity)
	payload = append(payload, u16(2)...)

	payload = append(payload, 1) // flags: key
	payload = append(payload, cstr("id")...)
	payload = append(payload, u32(23)...)  // int4 oid
	payload = append(payload, u32(0xFFFFFFFF)...) // atttypmod -1

	payload = append(payload, 0) // flags: not key
	payload = append(payload, cstr("balance")...)
	payload = append(payload, u32(1700)...) // numeric oid
	payload = append(payload, u32(0)...)

	return payload
}

func TestDecodeRelation(t *testing.T) {
	msg, err := decoder.Decode(buildRelation(16400, 'd'))
	require.NoError(t, err)
	rel, ok := msg.(decoder.RelationMessage)
	require.True(t, ok)
	require.Equal(t, uint32(16400), rel.RelationID)
	require.Equal(t, "public", rel.Namespace)
	require.Equal(t, "accounts", rel.RelationName)
	require.Equal(t, decoder.ReplicaIdentityDefault, rel.ReplicaIdentity)
	require.Len(t, rel.Columns, 2)
	require.True(t, rel.Columns[0].Key)
	require.Equal(t, "id", rel.Columns[0].Name)
	require.False(t, rel.Columns[1].Key)
}

func TestDecodeInsert(t *testing.T) {
	payload := append([]byte{'I'}, u32(16400)...)
	payload = append(payload, 'N')
	payload = append(payload, u16(2)...)
	payload = append(payload, textCol("1")...)
	payload = append(payload, textCol("100.00")...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	ins, ok := msg.(decoder.InsertMessage)
	require.True(t, ok)
	require.Equal(t, uint32(16400), ins.RelationID)
	require.Len(t, ins.Tuple.Columns, 2)
	require.Equal(t, decoder.ColumnText, ins.Tuple.Columns[0].Kind)
	require.Equal(t, "1", string(ins.Tuple.Columns[0].Data))
}

func TestDecodeUpdateWithKeyOldTuple(t *testing.T) {
	payload := append([]byte{'U'}, u32(16400)...)
	payload = append(payload, 'K')
	payload = append(payload, u16(1)...)
	payload = append(payload, textCol("1")...)
	payload = append(payload, 'N')
	payload = append(payload, u16(2)...)
	payload = append(payload, textCol("1")...)
	payload = append(payload, textCol("200.00")...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	upd, ok := msg.(decoder.UpdateMessage)
	require.True(t, ok)
	require.NotNil(t, upd.OldTuple)
	require.True(t, upd.OldIsKey)
	require.Len(t, upd.OldTuple.Columns, 1)
	require.Len(t, upd.NewTuple.Columns, 2)
}

func TestDecodeUpdateWithoutOldTuple(t *testing.T) {
	payload := append([]byte{'U'}, u32(16400)...)
	payload = append(payload, 'N')
	payload = append(payload, u16(1)...)
	payload = append(payload, nullCol()...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	upd, ok := msg.(decoder.UpdateMessage)
	require.True(t, ok)
	require.Nil(t, upd.OldTuple)
	require.Len(t, upd.NewTuple.Columns, 1)
	require.Equal(t, decoder.ColumnNull, upd.NewTuple.Columns[0].Kind)
}

func TestDecodeDeleteFullOldTuple(t *testing.T) {
	payload := append([]byte{'D'}, u32(16400)...)
	payload = append(payload, 'O')
	payload = append(payload, u16(2)...)
	payload = append(payload, textCol("1")...)
	payload = append(payload, textCol("200.00")...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	del, ok := msg.(decoder.DeleteMessage)
	require.True(t, ok)
	require.False(t, del.OldIsKey)
	require.Len(t, del.OldTuple.Columns, 2)
}

func TestDecodeUnchangedTOASTColumn(t *testing.T) {
	payload := append([]byte{'I'}, u32(16400)...)
	payload = append(payload, 'N')
	payload = append(payload, u16(1)...)
	payload = append(payload, 'u')

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	ins := msg.(decoder.InsertMessage)
	require.Equal(t, decoder.ColumnUnchangedTOAST, ins.Tuple.Columns[0].Kind)
	require.Nil(t, ins.Tuple.Columns[0].Data)
}

func TestDecodeTruncate(t *testing.T) {
	payload := append([]byte{'T'}, u32(2)...)
	payload = append(payload, 0)
	payload = append(payload, u32(16400)...)
	payload = append(payload, u32(16401)...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	trunc, ok := msg.(decoder.TruncateMessage)
	require.True(t, ok)
	require.Equal(t, []uint32{16400, 16401}, trunc.RelationIDs)
}

func TestDecodeOrigin(t *testing.T) {
	payload := append([]byte{'O'}, u64(0x1A0)...)
	payload = append(payload, cstr("pub")...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	origin, ok := msg.(decoder.OriginMessage)
	require.True(t, ok)
	require.Equal(t, "pub", origin.Name)
}

func TestDecodeType(t *testing.T) {
	payload := append([]byte{'Y'}, u32(16500)...)
	payload = append(payload, cstr("public")...)
	payload = append(payload, cstr("mood")...)

	msg, err := decoder.Decode(payload)
	require.NoError(t, err)
	typ, ok := msg.(decoder.TypeMessage)
	require.True(t, ok)
	require.Equal(t, "mood", typ.Name)
}

func TestDecodeUnknownTagIsError(t *testing.T) {
	_, err := decoder.Decode([]byte{'?'})
	require.Error(t, err)
	var decErr *decoder.DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeTruncatedPayload(t *testing.T) {
	_, err := decoder.Decode([]byte{'B', 1, 2})
	require.Error(t, err)
}
