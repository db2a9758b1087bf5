package router

import "reflect"

// actionName maps an assembler.ChangeKind to the lowercase action string a
// Predicate.Action compares against. Defined here rather than imported
// from assembler to keep the predicate's input shape — {schema, table,
// action, column values} — a plain value tuple.
const (
	actionInsert = "insert"
	actionUpdate = "update"
	actionDelete = "delete"
)

// matchContext is the {schema, table, action, column values} tuple a
// predicate matches against.
type matchContext struct {
	Schema string
	Table  string
	Action string
	Record map[string]any
}

// matches reports whether ctx satisfies p. Row filters are evaluated
// against ctx.Record; for a column absent from Record, Eq and In filters
// do not match and a Neq filter does.
func (p Predicate) matches(ctx matchContext) bool {
	if p.Schema != "" && p.Schema != ctx.Schema {
		return false
	}
	if p.Table != "" && p.Table != ctx.Table {
		return false
	}
	if p.Action != "" && p.Action != ctx.Action {
		return false
	}
	for _, f := range p.RowFilters {
		if !f.matches(ctx.Record) {
			return false
		}
	}
	return true
}

func (f RowFilter) matches(record map[string]any) bool {
	v, ok := record[f.Column]
	switch f.Operator {
	case OpEq:
		return ok && reflect.DeepEqual(v, f.Value)
	case OpNeq:
		return !ok || !reflect.DeepEqual(v, f.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range f.Values {
			if reflect.DeepEqual(v, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
