// Package replication drives one logical replication slot end to end:
// receive CopyBoth frames, decode and assemble transactions, dispatch them
// to a MessageHandler, and acknowledge progress back to the server.
package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog"

	"github.com/sequinstream/sequin-go/pkg/assembler"
	"github.com/sequinstream/sequin-go/pkg/decoder"
	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/relation"
	"github.com/sequinstream/sequin-go/pkg/wire"
)

// standbyUpdateInterval is how often an ack frame is sent even when the
// server hasn't explicitly asked for one, matching the interval pacdc's
// ecosystem peers use to keep a replication slot's restart_lsn moving.
const standbyUpdateInterval = 10 * time.Second

// Session owns one live replication connection and drives its frames
// through the decode -> assemble -> handle -> ack pipeline. It is not safe
// for concurrent use.
type Session struct {
	SlotID    string
	Conn      *pgconn.PgConn
	Relations *relation.Cache
	Assembler *assembler.Assembler
	Handler   MessageHandler
	Ack       AckTracker
	Log       zerolog.Logger

	// lastServerWALEnd is the most recent wal_end the server has reported,
	// via either a keepalive or an XLogData frame. It is the ack fallback
	// used before this session has durably committed anything of its own.
	lastServerWALEnd lsn.LSN
}

// NewSession builds a Session ready to Run.
func NewSession(slotID string, conn *pgconn.PgConn, relations *relation.Cache, asm *assembler.Assembler, handler MessageHandler, log zerolog.Logger) *Session {
	return &Session{
		SlotID:    slotID,
		Conn:      conn,
		Relations: relations,
		Assembler: asm,
		Handler:   handler,
		Log:       log.With().Str("component", "session").Str("slot_id", slotID).Logger(),
	}
}

// Run consumes CopyBoth frames until ctx is canceled or the connection
// reports a fatal error. It returns nil only on clean cancellation; any
// other return value is a reason to reconnect.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(standbyUpdateInterval)
	defer ticker.Stop()

	msgCh := make(chan pgproto3.BackendMessage)
	errCh := make(chan error, 1)
	go func() {
		for {
			msg, err := s.Conn.ReceiveMessage(ctx)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("replication: receive: %w", err)

		case <-ticker.C:
			if err := s.sendAck(ctx, s.lastServerWALEnd, false); err != nil {
				return fmt.Errorf("replication: periodic ack: %w", err)
			}

		case msg := <-msgCh:
			cd, ok := msg.(*pgproto3.CopyData)
			if !ok {
				continue
			}
			if err := s.handleFrame(ctx, cd.Data); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, payload []byte) error {
	frame, err := wire.Decode(payload)
	if err != nil {
		return fmt.Errorf("replication: decode frame: %w", err)
	}

	switch {
	case frame.Keepalive != nil:
		s.lastServerWALEnd = frame.Keepalive.ServerWALEnd
		if frame.Keepalive.ReplyRequested {
			return s.sendAck(ctx, frame.Keepalive.ServerWALEnd, false)
		}
		return nil

	case frame.XLogData != nil:
		s.lastServerWALEnd = frame.XLogData.WALEnd
		return s.handleXLogData(ctx, *frame.XLogData)

	default:
		s.Log.Debug().Uint8("tag", uint8(frame.Unknown)).Msg("ignoring unrecognized CopyBoth frame")
		return nil
	}
}

func (s *Session) handleXLogData(ctx context.Context, xld wire.XLogData) error {
	if xld.WALStart == 0 && xld.WALEnd == 0 && len(xld.Data) == 0 {
		return nil
	}

	msg, err := decoder.Decode(xld.Data)
	if err != nil {
		return fmt.Errorf("replication: decode logical message at %s: %w", xld.WALStart, err)
	}

	txFrame, err := s.Assembler.Feed(ctx, msg)
	if err != nil {
		return fmt.Errorf("replication: assemble: %w", err)
	}
	if txFrame == nil {
		return nil
	}

	if err := s.Handler.HandleTransaction(ctx, s.SlotID, txFrame); err != nil {
		return fmt.Errorf("replication: handle transaction at %s: %w", txFrame.CommitLSN, err)
	}

	s.Ack.Advance(txFrame.CommitLSN)
	return s.sendAck(ctx, xld.WALEnd, false)
}

// sendAck renders and sends a Standby-Status-Update. fallbackWALEnd is the
// most recently observed server wal_end, used when this session has not
// yet durably committed a transaction of its own.
func (s *Session) sendAck(ctx context.Context, fallbackWALEnd lsn.LSN, replyNow bool) error {
	frame := s.Ack.Frame(fallbackWALEnd, time.Now().UTC(), replyNow)
	if err := Send(s.Conn, frame); err != nil {
		return fmt.Errorf("replication: send standby status update: %w", err)
	}
	return nil
}
