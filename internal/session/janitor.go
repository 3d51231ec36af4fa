package session

import (
	"context"
	"time"
)

// JanitorSweep deletes every session idle since before cutoff. It is
// idempotent: sweeping twice in a row with the same cutoff is a no-op
// the second time, since Delete on an already-absent id is not an error
// for either Store implementation.
func JanitorSweep(ctx context.Context, store Store, cutoff time.Time) (deleted int, err error) {
	ids, err := store.IdleSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// IdleTimeout is the default session expiry.
const IdleTimeout = 24 * time.Hour
