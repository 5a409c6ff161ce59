// Package sync reconciles the local store with its remote replica.
//
// Overview
//
// Each cycle pulls remote changes into the local database, pushes local
// changes out, and compares the dictionary watermark (the largest
// updated_at_timestamp_ms) before and after:
//
//	watermark_before = MAX(updated_at)
//	      ↓
//	  Pull (remote → local)
//	      ↓
//	  Push (local → remote)
//	      ↓
//	watermark_after = MAX(updated_at)
//	      ↓
//	changed? → notify.DatasetChanged → search rehydration, dashboard reload
//
// The whole cycle is one operation on the queue's sync lane, so concurrent
// Sync calls collapse onto the cycle already pending or running, and no
// local write interleaves with a pull.
//
// Failure
//
// A failing step aborts the cycle. The watermark comparison is skipped, no
// DatasetChanged is published, and the error (wrapping ErrSyncFailed) is
// returned to every caller that merged onto the cycle. A SyncFailed event is
// published for observers.
//
// Usage
//
//	engine := sync.New(sync.Options{DB: adapter, Queue: q, Publisher: hub, Logger: logger})
//	res, err := engine.Sync(ctx)
//	if err != nil {
//	    return err
//	}
//	if res.Changed {
//	    fmt.Println("dataset changed")
//	}
package sync
