package assembler

import (
	"reflect"

	"github.com/sequinstream/sequin-go/pkg/decoder"
	"github.com/sequinstream/sequin-go/pkg/relation"
	"github.com/sequinstream/sequin-go/pkg/typecast"
)

// tupleToRecord casts each non-null column of tuple against rel's declared
// column types, keyed by column name. Unchanged-TOAST columns are set to
// the typecast.Unchanged{} sentinel. Null columns are omitted rather than
// set to a Go nil/zero value: under a partial (key-
// only) tuple — the only kind Postgres sends for REPLICA IDENTITY DEFAULT
// deletes and no-op-old updates — every non-key column arrives tagged
// Null, and the wire format gives no way to tell that apart from a column
// that is genuinely SQL NULL. Treating both as "absent" keeps an
// old_record built from a key-only tuple from reporting every non-key
// column as falsely nulled out.
func tupleToRecord(rel relation.Relation, tuple decoder.TupleData) map[string]any {
	out := make(map[string]any, len(tuple.Columns))
	for i, col := range tuple.Columns {
		if i >= len(rel.Columns) {
			break
		}
		name := rel.Columns[i].Name

		switch col.Kind {
		case decoder.ColumnNull:
			continue
		case decoder.ColumnUnchangedTOAST:
			out[name] = typecast.Unchanged{}
		case decoder.ColumnText, decoder.ColumnBinary:
			typeName, _ := typecast.TypeNameForOID(rel.Columns[i].DataTypeOID)
			v, _ := typecast.Cast(typeName, string(col.Data))
			out[name] = v
		}
	}
	return out
}

// primaryKeyValues extracts the primary-key columns from an already-cast
// record, in relation column order.
func primaryKeyValues(rel relation.Relation, record map[string]any) []any {
	ids := make([]any, 0, 1)
	for _, col := range rel.Columns {
		if !col.IsPK {
			continue
		}
		if v, ok := record[col.Name]; ok {
			ids = append(ids, v)
		}
	}
	return ids
}

// diffColumns returns the subset of oldRecord whose value differs from
// newRecord's — the "changes" view of a REPLICA IDENTITY FULL update.
func diffColumns(oldRecord, newRecord map[string]any) map[string]any {
	if len(oldRecord) == 0 {
		return map[string]any{}
	}
	changes := make(map[string]any)
	for name, oldVal := range oldRecord {
		newVal, ok := newRecord[name]
		if !ok || !reflect.DeepEqual(oldVal, newVal) {
			changes[name] = oldVal
		}
	}
	return changes
}
