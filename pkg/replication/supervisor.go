package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sequinstream/sequin-go/pkg/assembler"
	"github.com/sequinstream/sequin-go/pkg/config"
	"github.com/sequinstream/sequin-go/pkg/relation"
)

// Dialer opens the replication-mode connection for one attempt. Production
// code connects with pgconn.Connect(ctx, dsn+" replication=database");
// tests substitute an in-memory pair.
type Dialer func(ctx context.Context) (*pgconn.PgConn, error)

// Supervisor owns the reconnect loop around a Session: on any connection
// error it backs off, reconnects, reissues START_REPLICATION from the
// slot's last confirmed position, and starts a fresh Session. The
// assembler and relation cache are rebuilt from scratch on every
// reconnect, because a restarted replication stream always resends
// Relation messages before the first row change that needs them, and any
// row changes buffered mid-transaction at disconnect time are gone with
// the dropped connection.
type Supervisor struct {
	Slot    config.SlotConfig
	Dial    Dialer
	Catalog *pgxpool.Pool
	Handler MessageHandler
	Log     zerolog.Logger

	// Backoff is the retry policy between reconnect attempts. Defaults to
	// an exponential backoff capped at 30s if left nil.
	Backoff backoff.BackOff
}

// NewSupervisor builds a Supervisor with the default backoff policy.
// catalog is a pooled, non-replication connection used for the relation
// cache's primary-key lookups; it is distinct from the replication-mode
// connection Dial produces.
func NewSupervisor(slot config.SlotConfig, dial Dialer, catalog *pgxpool.Pool, handler MessageHandler, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		Slot:    slot,
		Dial:    dial,
		Catalog: catalog,
		Handler: handler,
		Log:     log.With().Str("component", "supervisor").Str("slot_id", slot.ID).Logger(),
		Backoff: defaultBackoff(),
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever; the caller's ctx bounds the loop
	return b
}

// Run drives the reconnect loop until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := s.Backoff
	if bo == nil {
		bo = defaultBackoff()
	}
	bo = backoff.WithContext(bo, ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("replication: supervisor giving up on slot %s: %w", s.Slot.ID, err)
		}
		s.Log.Warn().Err(err).Dur("retry_in", wait).Msg("replication session ended, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	conn, err := s.Dial(ctx)
	if err != nil {
		return fmt.Errorf("replication: connect: %w", err)
	}
	defer conn.Close(ctx)

	opts := pglogrepl.StartReplicationOptions{
		PluginArgs: []string{
			"proto_version '1'",
			fmt.Sprintf("publication_names '%s'", s.Slot.Publication),
		},
	}
	if err := pglogrepl.StartReplication(ctx, conn, s.Slot.SlotName, pglogrepl.LSN(0), opts); err != nil {
		return fmt.Errorf("replication: start replication on slot %s: %w", s.Slot.SlotName, err)
	}

	relations := relation.New(s.Catalog)
	asm := assembler.New(relations)
	session := NewSession(s.Slot.ID, conn, relations, asm, s.Handler, s.Log)

	s.Log.Info().Msg("replication session started")
	return session.Run(ctx)
}
