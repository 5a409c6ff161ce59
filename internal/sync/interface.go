package sync

import (
	"context"
	"errors"
	"time"
)

// ErrSyncFailed wraps every error returned by Sync.
var ErrSyncFailed = errors.New("sync failed")

// Result describes one completed cycle.
type Result struct {
	// WatermarkBefore and WatermarkAfter are MAX(updated_at_timestamp_ms)
	// over dictionary_entries around the pull and push.
	WatermarkBefore int64 `json:"watermark_before"`
	WatermarkAfter  int64 `json:"watermark_after"`

	// Changed reports whether the watermark moved.
	Changed bool `json:"changed"`

	// Entries is the entry count after the cycle.
	Entries int `json:"entries"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Status is the outcome of the most recent cycle.
type Status struct {
	Result Result    `json:"result"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}

// Syncer runs sync cycles.
//
// Sync is safe to call from any goroutine. Calls that arrive while a cycle is
// pending or running share that cycle's outcome instead of starting another.
//
// Example:
//
//	res, err := syncer.Sync(ctx)
//	if errors.Is(err, store.ErrNoReplica) {
//	    // local-only store; nothing to do
//	}
type Syncer interface {
	// Sync runs or joins a cycle and waits for it.
	//
	// ctx bounds only the wait. A cycle that already started runs to
	// completion so the store never sees half a pull.
	Sync(ctx context.Context) (Result, error)

	// Last returns the outcome of the most recent cycle, if any ran.
	Last() (Status, bool)
}
