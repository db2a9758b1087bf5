package typecast_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/typecast"
)

func TestCastIntegers(t *testing.T) {
	v, err := typecast.Cast("int4", "42")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestCastIntegerOverflowFailsNonFatally(t *testing.T) {
	v, err := typecast.Cast("int2", "99999999999999999999")
	require.Error(t, err)
	require.Equal(t, "99999999999999999999", v)
	var castErr *typecast.CastError
	require.ErrorAs(t, err, &castErr)
}

func TestCastFloat(t *testing.T) {
	v, err := typecast.Cast("float8", "3.14")
	require.NoError(t, err)
	require.InDelta(t, 3.14, v, 0.0001)
}

func TestCastNumeric(t *testing.T) {
	v, err := typecast.Cast("numeric", "100.50")
	require.NoError(t, err)
	require.True(t, decimal.NewFromFloat(100.50).Equal(v.(decimal.Decimal)))
}

func TestCastNumericFailurePassesThroughRawText(t *testing.T) {
	v, err := typecast.Cast("numeric", "not-a-number")
	require.Error(t, err)
	require.Equal(t, "not-a-number", v)
}

func TestCastMoney(t *testing.T) {
	v, err := typecast.Cast("money", "$1,234.56")
	require.NoError(t, err)
	require.True(t, decimal.NewFromFloat(1234.56).Equal(v.(decimal.Decimal)))
}

func TestCastBool(t *testing.T) {
	v, err := typecast.Cast("bool", "t")
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = typecast.Cast("bool", "f")
	require.NoError(t, err)
	require.Equal(t, false, v)

	_, err = typecast.Cast("bool", "x")
	require.Error(t, err)
}

func TestCastByteaHex(t *testing.T) {
	v, err := typecast.Cast("bytea", `\x68656c6c6f`)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestCastByteaEscape(t *testing.T) {
	v, err := typecast.Cast("bytea", `hello\\world`)
	require.NoError(t, err)
	require.Equal(t, []byte(`hello\world`), v)
}

func TestCastTimestamp(t *testing.T) {
	v, err := typecast.Cast("timestamp", "2024-01-15 10:30:00")
	require.NoError(t, err)
	tm := v.(time.Time)
	require.Equal(t, 2024, tm.Year())
	require.Equal(t, time.January, tm.Month())
}

func TestCastTimestampTZ(t *testing.T) {
	v, err := typecast.Cast("timestamptz", "2024-01-15 10:30:00+00")
	require.NoError(t, err)
	tm := v.(time.Time)
	require.Equal(t, time.UTC, tm.Location())
}

func TestCastDate(t *testing.T) {
	v, err := typecast.Cast("date", "2024-01-15")
	require.NoError(t, err)
	tm := v.(time.Time)
	require.Equal(t, 15, tm.Day())
}

func TestCastUUID(t *testing.T) {
	id := "5203ff86-6a99-4566-8b4a-b8d35f97e623"
	v, err := typecast.Cast("uuid", id)
	require.NoError(t, err)
	require.Equal(t, uuid.MustParse(id), v)
}

func TestCastJSON(t *testing.T) {
	v, err := typecast.Cast("jsonb", `{"a":1,"b":[1,2,3]}`)
	require.NoError(t, err)
	m := v.(map[string]any)
	require.Equal(t, float64(1), m["a"])
}

func TestCastArrayOfInts(t *testing.T) {
	v, err := typecast.Cast("_int4", "{1,2,3}")
	require.NoError(t, err)
	elems := v.([]any)
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, elems)
}

func TestCastArrayOfTextWithQuotesAndEscapes(t *testing.T) {
	// Scenario S5: quoted array elements containing escaped commas and quotes.
	v, err := typecast.Cast("_text", `{"hello, world","say \"hi\"",plain}`)
	require.NoError(t, err)
	elems := v.([]any)
	require.Equal(t, []any{"hello, world", `say "hi"`, "plain"}, elems)
}

func TestCastArrayWithNull(t *testing.T) {
	v, err := typecast.Cast("_int4", "{1,NULL,3}")
	require.NoError(t, err)
	elems := v.([]any)
	require.Equal(t, []any{int64(1), nil, int64(3)}, elems)
}

func TestCastArrayEmpty(t *testing.T) {
	v, err := typecast.Cast("_int4", "{}")
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
}

func TestCastUnknownTypePassesThrough(t *testing.T) {
	v, err := typecast.Cast("tsvector", "'foo':1")
	require.NoError(t, err)
	require.Equal(t, "'foo':1", v)
}
