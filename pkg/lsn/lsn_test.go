package lsn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/lsn"
)

func TestFromPartsAndParts(t *testing.T) {
	l := lsn.FromParts(0x16, 0xB374D848)
	hi, lo := l.Parts()
	require.Equal(t, uint32(0x16), hi)
	require.Equal(t, uint32(0xB374D848), lo)
}

func TestStringRoundTrip(t *testing.T) {
	l := lsn.FromParts(0x16, 0xB374D848)
	require.Equal(t, "16/B374D848", l.String())

	parsed, err := lsn.Parse(l.String())
	require.NoError(t, err)
	require.Equal(t, l, parsed)
}

func TestParseInvalid(t *testing.T) {
	_, err := lsn.Parse("not-an-lsn")
	require.Error(t, err)

	_, err = lsn.Parse("ZZ/11")
	require.Error(t, err)
}

func TestMonotonicComparison(t *testing.T) {
	a := lsn.FromParts(0, 0x1A0)
	b := lsn.FromParts(0, 0x1A1)
	require.True(t, a < b)
	require.Equal(t, b, a.Inc())
}

func TestS1Scenario(t *testing.T) {
	// commit at 0/1A0 acks 0x1A1.
	commit := lsn.FromParts(0, 0x1A0)
	require.Equal(t, lsn.LSN(0x1A1), commit.Inc())
}
