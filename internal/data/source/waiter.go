package source

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sszokoly/avaya/internal/util"
)

// Waiter is the follow mode backoff. It sleeps for the poll interval but
// wakes early when the watched directory reports a create or a write.
type Waiter struct {
	interval time.Duration
	watcher  *fsnotify.Watcher
	wake     chan struct{}
	done     chan struct{}
}

// NewWaiter watches dir. Without a working watcher it degrades to a plain
// timer.
func NewWaiter(dir string, interval time.Duration) *Waiter {
	w := &Waiter{
		interval: interval,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		util.LogDebug("file watcher unavailable, polling only", util.Field{Key: "error", Value: err.Error()})
		return w
	}
	if err := watcher.Add(dir); err != nil {
		util.LogDebug("cannot watch log directory, polling only",
			util.Field{Key: "dir", Value: dir}, util.Field{Key: "error", Value: err.Error()})
		watcher.Close()
		return w
	}
	w.watcher = watcher
	go w.processEvents()
	return w
}

func (w *Waiter) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				select {
				case w.wake <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue running
			util.LogError("file monitoring error", util.Field{Key: "error", Value: err.Error()})
		case <-w.done:
			return
		}
	}
}

// Wait blocks for at most the poll interval. It returns ctx.Err() when
// the context is cancelled.
func (w *Waiter) Wait(ctx context.Context) error {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-w.wake:
	}
	return nil
}

func (w *Waiter) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
