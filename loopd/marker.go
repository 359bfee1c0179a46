package loopd

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RestartKeyPrefix is the namespace of every restart marker key.
const RestartKeyPrefix = "loopd:restart"

// RestartKey returns the restart marker key for the daemon with the given
// name. Workers sharing a key are all restarted by a single broadcast.
func RestartKey(name string) string {
	if name == "" {
		return RestartKeyPrefix
	}
	return RestartKeyPrefix + ":" + name
}

// Marker is a durable store holding the time of the last restart broadcast.
// Values written must be visible to every process sharing the store.
type Marker interface {
	// LastRestart returns the last restart time for the key. A zero time is
	// returned if no restart was ever broadcast.
	LastRestart(ctx context.Context, key string) (time.Time, error)
	// SetRestart stores the restart time for the key without expiry.
	SetRestart(ctx context.Context, key string, t time.Time) error
}

// Broadcast asks every worker watching key to stop at the end of its current
// iteration. The time written is returned.
func Broadcast(ctx context.Context, m Marker, key string) (time.Time, error) {
	now := time.Now()

	if err := m.SetRestart(ctx, key, now); err != nil {
		return time.Time{}, errors.Wrap(err, "failed to set restart marker")
	}

	return now, nil
}
