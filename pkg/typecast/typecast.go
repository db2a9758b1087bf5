// Package typecast converts the text-format column values a logical
// decode emits into typed Go values, keyed by the relation column's
// Postgres type name.
package typecast

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unchanged is the sentinel value produced for a TOASTed column that the
// source did not send because it is unchanged from the previous row image.
// It is distinct from nil (SQL NULL) and from any concrete cast result.
type Unchanged struct{}

// CastError reports that a text value could not be cast to its declared
// type. This is never fatal: callers fall back to the
// raw text and continue.
type CastError struct {
	TypeName string
	Text     string
	Reason   string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("typecast: cannot cast %q as %s: %s", e.Text, e.TypeName, e.Reason)
}

const (
	pgTimestampLayout   = "2006-01-02 15:04:05.999999"
	pgTimestampTZLayout = "2006-01-02 15:04:05.999999Z07"
	pgDateLayout        = "2006-01-02"
	pgTimeLayout        = "15:04:05.999999"
	pgTimeTZLayout      = "15:04:05.999999Z07"
)

// Cast converts text, the column's on-the-wire text representation, into a
// Go value appropriate for typeName. On failure it returns the original
// text unchanged alongside a non-nil *CastError; the caller decides
// whether to log and continue.
func Cast(typeName, text string) (any, error) {
	if strings.HasPrefix(typeName, "_") {
		elems, err := castArray(typeName, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return elems, nil
	}

	switch typeName {
	case "int2", "int4", "int8", "oid":
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "float4", "float8":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "numeric", "money":
		v, err := decimal.NewFromString(normalizeMoney(text))
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "bool":
		switch text {
		case "t":
			return true, nil
		case "f":
			return false, nil
		default:
			return text, &CastError{TypeName: typeName, Text: text, Reason: "expected \"t\" or \"f\""}
		}

	case "bytea":
		v, err := castBytea(text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "timestamp":
		v, err := time.Parse(pgTimestampLayout, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "timestamptz":
		v, err := time.Parse(pgTimestampTZLayout, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v.UTC(), nil

	case "date":
		v, err := time.Parse(pgDateLayout, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "time":
		v, err := time.Parse(pgTimeLayout, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "timetz":
		v, err := time.Parse(pgTimeTZLayout, text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "uuid":
		v, err := uuid.Parse(text)
		if err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	case "json", "jsonb":
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return text, &CastError{TypeName: typeName, Text: text, Reason: err.Error()}
		}
		return v, nil

	default:
		return text, nil
	}
}

// normalizeMoney strips the locale currency symbol and thousands
// separators Postgres's money output function emits (e.g. "$1,234.56"),
// since shopspring/decimal only parses plain numeric text.
func normalizeMoney(text string) string {
	s := strings.TrimPrefix(text, "$")
	s = strings.ReplaceAll(s, ",", "")
	return s
}

// castBytea decodes Postgres's hex ("\x...") or legacy escape bytea
// output formats.
func castBytea(text string) ([]byte, error) {
	if strings.HasPrefix(text, "\\x") {
		return hex.DecodeString(text[2:])
	}
	return castByteaEscape(text)
}

func castByteaEscape(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(text) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch {
		case text[i+1] == '\\':
			out = append(out, '\\')
			i++
		case i+3 < len(text) && isOctalDigit(text[i+1]) && isOctalDigit(text[i+2]) && isOctalDigit(text[i+3]):
			v, err := strconv.ParseUint(text[i+1:i+4], 8, 8)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v))
			i += 3
		default:
			return nil, fmt.Errorf("invalid escape sequence at offset %d", i)
		}
	}
	return out, nil
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
