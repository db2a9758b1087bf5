package decoder

import "time"

// pg2000Epoch mirrors the replication protocol's epoch (2000-01-01 UTC),
// against which Begin/Commit/Origin timestamps are microsecond offsets.
var pg2000Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func microsSincePG2000(micros int64) time.Time {
	return pg2000Epoch.Add(time.Duration(micros) * time.Microsecond)
}
