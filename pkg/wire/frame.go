// Package wire decodes the CopyBoth-mode frames PostgreSQL sends on a
// logical replication connection (XLogData and PrimaryKeepalive) and
// encodes the Standby-Status-Update acknowledgement frame sent back.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sequinstream/sequin-go/pkg/lsn"
)

// Tag identifies the first byte of a CopyBoth frame.
type Tag byte

const (
	TagXLogData         Tag = 'w'
	TagPrimaryKeepalive Tag = 'k'
	tagStandbyUpdate        = 'r'
)

// pg2000Epoch is the Postgres epoch (2000-01-01 00:00:00 UTC) used for all
// replication-protocol timestamps, which are microseconds since this instant.
var pg2000Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// microsSincePG2000 converts a wire-format microsecond count into a time.Time.
func microsSincePG2000(micros int64) time.Time {
	return pg2000Epoch.Add(time.Duration(micros) * time.Microsecond)
}

func toPGMicros(t time.Time) int64 {
	return t.Sub(pg2000Epoch).Microseconds()
}

// XLogData is a decoded 'w' frame: a chunk of WAL carrying one logical
// message in Data.
type XLogData struct {
	WALStart   lsn.LSN
	WALEnd     lsn.LSN
	ServerTime time.Time
	Data       []byte
}

// PrimaryKeepalive is a decoded 'k' frame.
type PrimaryKeepalive struct {
	ServerWALEnd   lsn.LSN
	ServerTime     time.Time
	ReplyRequested bool
}

// Frame is the result of decoding one CopyBoth payload: exactly one of
// XLogData or Keepalive is non-nil, unless the tag was unrecognized, in
// which case Unknown is set.
type Frame struct {
	XLogData *XLogData
	Keepalive *PrimaryKeepalive
	Unknown   Tag
}

// Decode parses a single CopyData payload (the bytes following pgproto3's
// CopyData message header) into a Frame. Unknown tags are reported via
// Frame.Unknown rather than returned as an error — callers log and skip them.
func Decode(payload []byte) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, fmt.Errorf("wire: empty frame")
	}

	switch Tag(payload[0]) {
	case TagXLogData:
		xld, err := decodeXLogData(payload[1:])
		if err != nil {
			return Frame{}, err
		}
		return Frame{XLogData: &xld}, nil

	case TagPrimaryKeepalive:
		pkm, err := decodeKeepalive(payload[1:])
		if err != nil {
			return Frame{}, err
		}
		return Frame{Keepalive: &pkm}, nil

	default:
		return Frame{Unknown: Tag(payload[0])}, nil
	}
}

// decodeXLogData parses the 24-byte XLogData header (start LSN, end LSN,
// server clock) followed by the logical-message payload.
func decodeXLogData(b []byte) (XLogData, error) {
	const headerLen = 24
	if len(b) < headerLen {
		return XLogData{}, fmt.Errorf("wire: XLogData header underflow: got %d bytes, need %d", len(b), headerLen)
	}
	start := binary.BigEndian.Uint64(b[0:8])
	end := binary.BigEndian.Uint64(b[8:16])
	clock := int64(binary.BigEndian.Uint64(b[16:24]))
	return XLogData{
		WALStart:   lsn.LSN(start),
		WALEnd:     lsn.LSN(end),
		ServerTime: microsSincePG2000(clock),
		Data:       b[headerLen:],
	}, nil
}

// decodeKeepalive parses a PrimaryKeepaliveMessage payload:
// (wal_end: u64, clock: u64, reply_requested: u8).
func decodeKeepalive(b []byte) (PrimaryKeepalive, error) {
	const bodyLen = 17
	if len(b) < bodyLen {
		return PrimaryKeepalive{}, fmt.Errorf("wire: keepalive underflow: got %d bytes, need %d", len(b), bodyLen)
	}
	walEnd := binary.BigEndian.Uint64(b[0:8])
	clock := int64(binary.BigEndian.Uint64(b[8:16]))
	return PrimaryKeepalive{
		ServerWALEnd:   lsn.LSN(walEnd),
		ServerTime:     microsSincePG2000(clock),
		ReplyRequested: b[16] == 1,
	}, nil
}

// StandbyStatusUpdate is the acknowledgement frame sent upstream, per
// the layout 'r' || flushed+1 || applied+1 || written+1 || clock || reply,
// where the reply byte is 0x01 when ReplyNow is set and 0x00 otherwise.
type StandbyStatusUpdate struct {
	WrittenLSN lsn.LSN
	FlushedLSN lsn.LSN
	AppliedLSN lsn.LSN
	ClientTime time.Time
	ReplyNow   bool
}

// EncodeStandbyStatusUpdate serializes the ack frame. The +1 increment on
// every LSN is intentional: it keeps the server from replaying the last
// record this engine already durably processed.
func EncodeStandbyStatusUpdate(u StandbyStatusUpdate) []byte {
	out := make([]byte, 0, 1+8*3+8+1)
	out = append(out, tagStandbyUpdate)
	out = appendUint64(out, uint64(u.FlushedLSN.Inc()))
	out = appendUint64(out, uint64(u.AppliedLSN.Inc()))
	out = appendUint64(out, uint64(u.WrittenLSN.Inc()))
	out = appendUint64(out, uint64(toPGMicros(u.ClientTime)))
	if u.ReplyNow {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}
