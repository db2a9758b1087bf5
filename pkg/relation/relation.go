// Package relation maintains the per-session cache mapping a relation OID
// to its schema, table name, and ordered columns, backed by a catalog
// query for primary-key membership.
package relation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sequinstream/sequin-go/pkg/decoder"
)

// Column is one ordered column of a cached Relation.
type Column struct {
	Name        string
	DataTypeOID uint32
	IsPK        bool
}

// Relation is the cached schema shape for one OID.
type Relation struct {
	OID     uint32
	Schema  string
	Name    string
	Columns []Column
}

// QualifiedName returns "schema.name", the form used in catalog queries and
// log lines.
func (r Relation) QualifiedName() string {
	return fmt.Sprintf("%s.%s", r.Schema, r.Name)
}

// primaryKeyQuery resolves PK column names via pg_index/pg_attribute
// rather than trusting the protocol's own per-column "key" flag, which
// Postgres sets on every column under REPLICA IDENTITY FULL.
const primaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = ($1 || '.' || $2)::regclass
  AND i.indisprimary`

// PrimaryKeyLookup resolves the set of primary-key column names for
// schema.table. The production path queries pg_index/pg_attribute; tests
// substitute a fake.
type PrimaryKeyLookup func(ctx context.Context, schema, table string) (map[string]bool, error)

// Cache is keyed by relation OID; a later Relation message for the same
// OID overwrites the cached entry.
type Cache struct {
	lookupPK PrimaryKeyLookup
	entries  map[uint32]Relation
}

// New builds a Cache that resolves primary keys against pool, a pooled
// connection distinct from the replication socket.
func New(pool *pgxpool.Pool) *Cache {
	return &Cache{lookupPK: catalogPrimaryKeyLookup(pool), entries: make(map[uint32]Relation)}
}

// NewWithLookup builds a Cache against an arbitrary PrimaryKeyLookup,
// letting tests (in this package and others) avoid a live Postgres
// connection.
func NewWithLookup(lookup PrimaryKeyLookup) *Cache {
	return &Cache{lookupPK: lookup, entries: make(map[uint32]Relation)}
}

func catalogPrimaryKeyLookup(pool *pgxpool.Pool) PrimaryKeyLookup {
	return func(ctx context.Context, schema, table string) (map[string]bool, error) {
		rows, err := pool.Query(ctx, primaryKeyQuery, schema, table)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		pk := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, err
			}
			pk[name] = true
		}
		return pk, rows.Err()
	}
}

// Upsert records (or overwrites) the cache entry for msg.RelationID,
// resolving primary-key membership from the catalog. When
// msg.ReplicaIdentity is Full, Postgres marks every column as a key on the
// wire; that per-column flag is ignored and the catalog query is always
// the sole source of truth.
func (c *Cache) Upsert(ctx context.Context, msg decoder.RelationMessage) (Relation, error) {
	pkNames, err := c.lookupPK(ctx, msg.Namespace, msg.RelationName)
	if err != nil {
		return Relation{}, fmt.Errorf("relation: primary key lookup for %s.%s: %w", msg.Namespace, msg.RelationName, err)
	}

	cols := make([]Column, 0, len(msg.Columns))
	for _, mc := range msg.Columns {
		cols = append(cols, Column{
			Name:        mc.Name,
			DataTypeOID: mc.DataTypeOID,
			IsPK:        pkNames[mc.Name],
		})
	}

	rel := Relation{
		OID:     msg.RelationID,
		Schema:  msg.Namespace,
		Name:    msg.RelationName,
		Columns: cols,
	}
	c.entries[msg.RelationID] = rel
	return rel, nil
}

// Get returns the cached Relation for oid, if one has been seen.
func (c *Cache) Get(oid uint32) (Relation, bool) {
	rel, ok := c.entries[oid]
	return rel, ok
}
