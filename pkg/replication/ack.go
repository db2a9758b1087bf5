package replication

import (
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/wire"
)

// AckTracker holds the last durably-committed LSN for one session and
// renders Standby-Status-Update frames from it. It is not
// safe for concurrent use; the session goroutine owns it.
type AckTracker struct {
	flushed lsn.LSN
	applied lsn.LSN
	written lsn.LSN
	haveAny bool
}

// Advance records a newly durably-persisted commit LSN. The flushed LSN
// reported upstream never regresses: a
// smaller LSN than what is already recorded is ignored.
func (t *AckTracker) Advance(commitLSN lsn.LSN) {
	if t.haveAny && commitLSN <= t.flushed {
		return
	}
	t.flushed = commitLSN
	t.applied = commitLSN
	t.written = commitLSN
	t.haveAny = true
}

// Frame renders the current ack state as a Standby-Status-Update,
// falling back to fallbackWALEnd (the server's own reported wal_end) when
// no transaction has committed yet this session.
func (t *AckTracker) Frame(fallbackWALEnd lsn.LSN, now time.Time, replyNow bool) wire.StandbyStatusUpdate {
	flushed, applied, written := t.flushed, t.applied, t.written
	if !t.haveAny {
		flushed, applied, written = fallbackWALEnd, fallbackWALEnd, fallbackWALEnd
	}
	return wire.StandbyStatusUpdate{
		WrittenLSN: written,
		FlushedLSN: flushed,
		AppliedLSN: applied,
		ClientTime: now,
		ReplyNow:   replyNow,
	}
}

// Send encodes frame as a Standby-Status-Update and writes it over conn's
// CopyBoth stream as a CopyData message.
func Send(conn *pgconn.PgConn, frame wire.StandbyStatusUpdate) error {
	cd := &pgproto3.CopyData{Data: wire.EncodeStandbyStatusUpdate(frame)}
	if err := conn.Frontend().Send(cd); err != nil {
		return err
	}
	return conn.Frontend().Flush()
}
