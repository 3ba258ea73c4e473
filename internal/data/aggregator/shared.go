package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
)

// update is a session event or, with ev nil, an interval advance
type update struct {
	ev *model.SessionEvent
	ts time.Time
}

// Shared serializes updates from several source pipelines into one
// aggregation loop.
type Shared struct {
	agg       *Aggregator
	updates   chan update
	closeOnce sync.Once
}

// NewShared wraps agg. buffer is the channel capacity between the
// pipelines and the loop.
func NewShared(agg *Aggregator, buffer int) *Shared {
	if buffer < 0 {
		buffer = 0
	}
	return &Shared{
		agg:     agg,
		updates: make(chan update, buffer),
	}
}

// Submit queues an event for the aggregation loop.
func (s *Shared) Submit(ctx context.Context, ev model.SessionEvent) error {
	return s.send(ctx, update{ev: &ev, ts: ev.Timestamp})
}

// Advance tells the loop a source has reached ts, closing intervals even
// when no session changed.
func (s *Shared) Advance(ctx context.Context, ts time.Time) error {
	return s.send(ctx, update{ts: ts})
}

func (s *Shared) send(ctx context.Context, u update) error {
	select {
	case s.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the input. It must be called after all pipelines stopped
// submitting; Run then flushes the last interval and returns.
func (s *Shared) Close() {
	s.closeOnce.Do(func() {
		close(s.updates)
	})
}

// Run applies updates until Close or ctx cancellation, passing every
// closed interval to emit.
func (s *Shared) Run(ctx context.Context, emit func(model.IntervalSnapshot)) error {
	for {
		select {
		case u, ok := <-s.updates:
			if !ok {
				if snap, closed := s.agg.Flush(); closed {
					emit(snap)
				}
				return nil
			}
			s.apply(u, emit)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Drain applies the updates still queued after Run returned on
// cancellation. It does not block and does not flush.
func (s *Shared) Drain(emit func(model.IntervalSnapshot)) int {
	n := 0
	for {
		select {
		case u, ok := <-s.updates:
			if !ok {
				return n
			}
			s.apply(u, emit)
			n++
		default:
			return n
		}
	}
}

func (s *Shared) apply(u update, emit func(model.IntervalSnapshot)) {
	var (
		snap   model.IntervalSnapshot
		closed bool
	)
	if u.ev != nil {
		snap, closed = s.agg.Apply(*u.ev)
	} else {
		snap, closed = s.agg.Advance(u.ts)
	}
	if closed {
		emit(snap)
	}
}
