package replication_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/lsn"
	"github.com/sequinstream/sequin-go/pkg/replication"
)

func TestAckTrackerFallsBackToServerWALEndBeforeFirstCommit(t *testing.T) {
	var tr replication.AckTracker
	now := time.Now().UTC()
	fallback := lsn.FromParts(0, 0x500)

	f := tr.Frame(fallback, now, false)
	require.Equal(t, fallback, f.FlushedLSN)
	require.Equal(t, fallback, f.AppliedLSN)
	require.Equal(t, fallback, f.WrittenLSN)
}

func TestAckTrackerAdvanceReflectsLatestCommit(t *testing.T) {
	var tr replication.AckTracker
	tr.Advance(lsn.FromParts(0, 0x100))

	f := tr.Frame(lsn.FromParts(0, 0), time.Now().UTC(), false)
	require.Equal(t, lsn.FromParts(0, 0x100), f.FlushedLSN)
}

func TestAckTrackerNeverRegresses(t *testing.T) {
	var tr replication.AckTracker
	tr.Advance(lsn.FromParts(0, 0x200))
	tr.Advance(lsn.FromParts(0, 0x100))

	f := tr.Frame(lsn.FromParts(0, 0), time.Now().UTC(), false)
	require.Equal(t, lsn.FromParts(0, 0x200), f.FlushedLSN)
}

func TestAckTrackerFrameCarriesReplyNowFlag(t *testing.T) {
	var tr replication.AckTracker
	f := tr.Frame(lsn.FromParts(0, 1), time.Now().UTC(), true)
	require.True(t, f.ReplyNow)
}
