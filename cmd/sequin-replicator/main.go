package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sequinstream/sequin-go/pkg/config"
	"github.com/sequinstream/sequin-go/pkg/replication"
	"github.com/sequinstream/sequin-go/pkg/router"
	"github.com/sequinstream/sequin-go/pkg/status"
	"github.com/sequinstream/sequin-go/pkg/store"
	"github.com/sequinstream/sequin-go/pkg/store/memstore"
)

// staticSubs is a SubscriptionSource that never changes; it exists so a
// standalone process has something to feed replication.DefaultHandler.
// A deployment that needs hot-reloadable consumers/pipelines supplies its
// own SubscriptionSource backed by its config store instead.
type staticSubs struct {
	consumers []router.Consumer
	pipelines []router.Pipeline
}

func (s staticSubs) Consumers(context.Context) ([]router.Consumer, error) { return s.consumers, nil }
func (s staticSubs) Pipelines(context.Context) ([]router.Pipeline, error) { return s.pipelines, nil }

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to slot config (JSON)")
	flag.Parse()

	if cfgPath == "" {
		fatal(errors.New("-config is required"))
	}

	slot, err := config.LoadFile(cfgPath)
	if err != nil {
		fatal(err)
	}

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("slot_id", slot.ID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := pgxpool.New(ctx, slot.Connection.DSN())
	if err != nil {
		fatal(fmt.Errorf("connect catalog pool: %w", err))
	}
	defer catalog.Close()

	dial := func(ctx context.Context) (*pgconn.PgConn, error) {
		return pgconn.Connect(ctx, slot.Connection.DSN()+" replication=database")
	}

	mem := memstore.New()
	handler := replication.NewDefaultHandler(
		staticSubs{},
		router.New(),
		store.NewPersistor(mem, slot.ID),
		status.NewRegistry(),
		log,
	)

	sup := replication.NewSupervisor(slot, dial, catalog, handler, log)
	if err := sup.Run(ctx); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
