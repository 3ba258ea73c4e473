package aggregator

import (
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/util"
)

// Stats counts events the aggregator did not apply
type Stats struct {
	Events    int
	Filtered  int // events for links outside the filter
	Underflow int // end events that would drive a counter below zero
}

// Aggregator buckets session events into intervals and tracks the live
// and peak concurrent session count per link and direction. It is not
// safe for concurrent use, see Shared.
type Aggregator struct {
	precision model.Precision
	links     map[string]struct{}

	interval string
	live     map[model.CounterKey]int
	peak     map[model.CounterKey]int
	liveSum  int
	peakSum  int
	changed  bool
	stats    Stats
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLinkFilter keeps only events for the given links.
func WithLinkFilter(links ...string) Option {
	return func(a *Aggregator) {
		if len(links) == 0 {
			return
		}
		a.links = make(map[string]struct{}, len(links))
		for _, l := range links {
			a.links[l] = struct{}{}
		}
	}
}

// New creates an Aggregator cutting intervals at precision.
func New(precision model.Precision, opts ...Option) *Aggregator {
	a := &Aggregator{
		precision: precision,
		live:      make(map[model.CounterKey]int),
		peak:      make(map[model.CounterKey]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply counts one session event. When the event belongs to a later
// interval the current one is closed first and its snapshot returned.
// Events older than the current interval count toward the current one.
func (a *Aggregator) Apply(ev model.SessionEvent) (model.IntervalSnapshot, bool) {
	if a.links != nil {
		if _, ok := a.links[ev.Link]; !ok {
			a.stats.Filtered++
			return model.IntervalSnapshot{}, false
		}
	}
	a.stats.Events++

	snap, closed := a.Advance(ev.Timestamp)

	key := model.CounterKey{Link: ev.Link, Direction: ev.Direction}
	delta := ev.Delta()
	if a.live[key]+delta < 0 {
		a.stats.Underflow++
		util.LogDebug("session end without start",
			util.Field{Key: "call_id", Value: ev.CallID}, util.Field{Key: "link", Value: ev.Link})
		return snap, closed
	}
	a.live[key] += delta
	a.liveSum += delta
	a.changed = true

	if a.liveSum > a.peakSum {
		a.peak = model.CopyCounters(a.live)
		a.peakSum = a.liveSum
	}
	return snap, closed
}

// Advance moves to the interval of ts without an event, closing the
// current interval if ts is past it.
func (a *Aggregator) Advance(ts time.Time) (model.IntervalSnapshot, bool) {
	key := a.precision.IntervalKey(ts)
	switch {
	case a.interval == "":
		a.interval = key
		return model.IntervalSnapshot{}, false
	case key <= a.interval:
		return model.IntervalSnapshot{}, false
	}

	snap, ok := a.close()
	a.interval = key
	// sessions spanning the boundary stay counted
	a.peak = model.CopyCounters(a.live)
	a.peakSum = a.liveSum
	return snap, ok
}

// close returns the snapshot of the current interval unless nothing
// changed since the previous one.
func (a *Aggregator) close() (model.IntervalSnapshot, bool) {
	if !a.changed {
		return model.IntervalSnapshot{}, false
	}
	a.changed = false
	return a.Snapshot(), true
}

// Flush closes the current interval at the end of the input.
func (a *Aggregator) Flush() (model.IntervalSnapshot, bool) {
	if a.interval == "" {
		return model.IntervalSnapshot{}, false
	}
	return a.close()
}

// Snapshot returns the counters of the current interval so far.
func (a *Aggregator) Snapshot() model.IntervalSnapshot {
	return model.IntervalSnapshot{
		Interval: a.interval,
		Current:  model.CopyCounters(a.live),
		Peak:     model.CopyCounters(a.peak),
	}
}

// Interval is the key of the current interval, empty before the first
// event.
func (a *Aggregator) Interval() string {
	return a.interval
}

func (a *Aggregator) Stats() Stats {
	return a.stats
}
