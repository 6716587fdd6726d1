package mirror

import (
	"context"

	"bucks/internal/core"
)

// Snapshot is a full copy of the store at export time. Currency and
// DateFormat carry the user's display presets so writers can render
// cells the way the user reads them.
type Snapshot struct {
	ExportedAt int64 // milliseconds since epoch
	Currency   int
	DateFormat int
	Funds      []core.Fund
	Movements  []core.Movement
}

// Writer receives backup snapshots for off-device safekeeping.
type Writer interface {
	WriteSnapshot(ctx context.Context, s Snapshot) error
}
