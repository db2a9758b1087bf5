package typecast

import (
	"fmt"
	"strings"
)

// castArray parses a Postgres array literal of the form "{e1,e2,...}",
// splitting on unquoted commas and recursing into Cast with the element
// type derived by stripping the array type name's leading underscore.
func castArray(typeName, text string) ([]any, error) {
	elemType := strings.TrimPrefix(typeName, "_")

	if len(text) < 2 || text[0] != '{' || text[len(text)-1] != '}' {
		return nil, fmt.Errorf("typecast: malformed array literal %q", text)
	}
	body := text[1 : len(text)-1]
	if body == "" {
		return []any{}, nil
	}

	fields, err := splitArrayFields(body)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(fields))
	for _, f := range fields {
		if f == "NULL" {
			out = append(out, nil)
			continue
		}
		unquoted, wasQuoted := unquoteArrayField(f)
		if wasQuoted {
			v, _ := Cast(elemType, unquoted)
			out = append(out, v)
			continue
		}
		v, _ := Cast(elemType, unquoted)
		out = append(out, v)
	}
	return out, nil
}

// splitArrayFields splits the comma-separated body of an array literal,
// honoring double-quoted fields (which may themselves contain escaped
// commas and braces) and nested braces for multi-dimensional arrays.
func splitArrayFields(body string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	depth := 0

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			cur.WriteByte(c)
			cur.WriteByte(body[i+1])
			i++
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == '{' && !inQuotes:
			depth++
			cur.WriteByte(c)
		case c == '}' && !inQuotes:
			depth--
			cur.WriteByte(c)
		case c == ',' && !inQuotes && depth == 0:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("typecast: unterminated quoted array field in %q", body)
	}
	fields = append(fields, cur.String())
	return fields, nil
}

// unquoteArrayField strips surrounding double quotes from a field and
// unescapes \" and \\, reporting whether the field was quoted.
func unquoteArrayField(field string) (string, bool) {
	if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' {
		return field, false
	}
	inner := field[1 : len(field)-1]
	var out strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			out.WriteByte(inner[i+1])
			i++
			continue
		}
		out.WriteByte(inner[i])
	}
	return out.String(), true
}
