package archive

import (
	"context"

	"github.com/hupe1980/runmesh/run"
)

// Store persists archived run records.
type Store interface {
	// Archive appends records. Records already archived are replaced.
	Archive(ctx context.Context, recs []run.Record) error
	// History returns up to limit records, most recently created first.
	// limit <= 0 returns everything.
	History(ctx context.Context, limit int) ([]run.Record, error)
	Close() error
}
