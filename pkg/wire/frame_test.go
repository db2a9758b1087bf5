package wire_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/wire"
)

func buildXLogData(start, end uint64, clockMicros int64, payload []byte) []byte {
	buf := make([]byte, 1+24+len(payload))
	buf[0] = byte(wire.TagXLogData)
	binary.BigEndian.PutUint64(buf[1:9], start)
	binary.BigEndian.PutUint64(buf[9:17], end)
	binary.BigEndian.PutUint64(buf[17:25], uint64(clockMicros))
	copy(buf[25:], payload)
	return buf
}

func TestDecodeXLogData(t *testing.T) {
	frame, err := wire.Decode(buildXLogData(0x1A0, 0x1A1, 0, []byte("B...")))
	require.NoError(t, err)
	require.NotNil(t, frame.XLogData)
	require.Equal(t, lsn.LSN(0x1A0), frame.XLogData.WALStart)
	require.Equal(t, lsn.LSN(0x1A1), frame.XLogData.WALEnd)
	require.Equal(t, []byte("B..."), frame.XLogData.Data)
}

func TestDecodeXLogDataUnderflow(t *testing.T) {
	_, err := wire.Decode([]byte{byte(wire.TagXLogData), 1, 2, 3})
	require.Error(t, err)
}

func TestDecodeKeepalive(t *testing.T) {
	buf := make([]byte, 1+17)
	buf[0] = byte(wire.TagPrimaryKeepalive)
	binary.BigEndian.PutUint64(buf[1:9], 0x2000)
	binary.BigEndian.PutUint64(buf[9:17], 0)
	buf[17] = 1

	frame, err := wire.Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, frame.Keepalive)
	require.Equal(t, lsn.LSN(0x2000), frame.Keepalive.ServerWALEnd)
	require.True(t, frame.Keepalive.ReplyRequested)
}

func TestDecodeUnknownTag(t *testing.T) {
	frame, err := wire.Decode([]byte{'z', 1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, wire.Tag('z'), frame.Unknown)
	require.Nil(t, frame.XLogData)
	require.Nil(t, frame.Keepalive)
}

func TestDecodeEmpty(t *testing.T) {
	_, err := wire.Decode(nil)
	require.Error(t, err)
}

func TestEncodeStandbyStatusUpdateIncrementsLSNs(t *testing.T) {
	now := time.Now().UTC()
	b := wire.EncodeStandbyStatusUpdate(wire.StandbyStatusUpdate{
		WrittenLSN: lsn.FromParts(0, 0x1A0),
		FlushedLSN: lsn.FromParts(0, 0x1A0),
		AppliedLSN: lsn.FromParts(0, 0x1A0),
		ClientTime: now,
	})
	require.Equal(t, 1+8+8+8+8+1, len(b))
	require.Equal(t, byte('r'), b[0])
	flushed := binary.BigEndian.Uint64(b[1:9])
	applied := binary.BigEndian.Uint64(b[9:17])
	written := binary.BigEndian.Uint64(b[17:25])
	require.Equal(t, uint64(0x1A1), flushed)
	require.Equal(t, uint64(0x1A1), applied)
	require.Equal(t, uint64(0x1A1), written)
	require.Equal(t, byte(0), b[len(b)-1])
}
