package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	model "campus-errands.com/campus-errands/internal/models"
)

// ErrandSubscription is a cancellable handle over a sequence of query
// snapshots. A snapshot is emitted on start and whenever the result set
// changes; Cancel detaches the watcher without touching the underlying data.
type ErrandSubscription struct {
	C chan []model.Errand

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the watch loop and waits for it to exit. The snapshot channel
// is closed once the loop is gone, so ranging over C terminates.
func (s *ErrandSubscription) Cancel() {
	s.cancel()
	<-s.done
}

// Watch polls the query on the given interval and delivers snapshots over the
// subscription channel. The loop exits when ctx is done or Cancel is called.
func (r *ErrandRepository) Watch(ctx context.Context, q ErrandQuery, interval time.Duration) *ErrandSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &ErrandSubscription{
		C:      make(chan []model.Errand, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.C)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last string
		emit := func() {
			errands, err := r.List(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("watch: list failed: %v", err)
				}
				return
			}

			fingerprint := snapshotFingerprint(errands)
			if fingerprint == last {
				return
			}
			last = fingerprint

			select {
			case sub.C <- errands:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit()
			}
		}
	}()

	return sub
}

// snapshotFingerprint identifies a result set by id and version, so any write
// to a member errand produces a new snapshot.
func snapshotFingerprint(errands []model.Errand) string {
	var b strings.Builder
	for _, e := range errands {
		fmt.Fprintf(&b, "%s:%d;", e.ID, e.Version)
	}
	return b.String()
}
