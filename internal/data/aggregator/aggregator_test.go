package aggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2019, 3, 8, 6, 30, 0, 0, time.UTC)

func ev(op model.SessionOp, callID, link string, dir model.Direction, at time.Duration) model.SessionEvent {
	return model.SessionEvent{Op: op, CallID: callID, Link: link, Direction: dir, Timestamp: base.Add(at)}
}

func start(callID string, at time.Duration) model.SessionEvent {
	return ev(model.OpStart, callID, "10.0.0.1", model.DirIn, at)
}

func end(callID string, at time.Duration) model.SessionEvent {
	return ev(model.OpEnd, callID, "10.0.0.1", model.DirIn, at)
}

var key = model.CounterKey{Link: "10.0.0.1", Direction: model.DirIn}

func TestPeakWithinInterval(t *testing.T) {
	a := New(model.PrecisionMinute)

	for _, e := range []model.SessionEvent{
		start("a", 1*time.Second),
		start("b", 2*time.Second),
		start("c", 3*time.Second),
		end("a", 4*time.Second),
		end("b", 5*time.Second),
	} {
		_, closed := a.Apply(e)
		assert.False(t, closed)
	}

	snap := a.Snapshot()
	assert.Equal(t, "20190308:0630", snap.Interval)
	assert.Equal(t, 1, snap.CurrentSum())
	assert.Equal(t, 3, snap.PeakSum())
}

func TestIntervalCarryForward(t *testing.T) {
	a := New(model.PrecisionMinute)

	_, closed := a.Apply(start("a", 10*time.Second))
	require.False(t, closed)

	// the session ends in the next interval
	t1, closed := a.Apply(end("a", 70*time.Second))
	require.True(t, closed)
	assert.Equal(t, "20190308:0630", t1.Interval)
	assert.Equal(t, 1, t1.Current[key])
	assert.Equal(t, 1, t1.Peak[key])

	t2, closed := a.Flush()
	require.True(t, closed)
	assert.Equal(t, "20190308:0631", t2.Interval)
	assert.Equal(t, 0, t2.Current[key])
	assert.Equal(t, 1, t2.Peak[key], "live at the start of the interval")

	// a session starting and ending in a later interval does not touch
	// earlier peaks
	a.Apply(start("b", 5*time.Minute))
	t3, closed := a.Apply(end("b", 5*time.Minute+time.Second))
	assert.False(t, closed)
	assert.Empty(t, t3.Peak)
}

func TestPeakResetToCarriedCount(t *testing.T) {
	a := New(model.PrecisionMinute)

	a.Apply(start("a", 0))
	a.Apply(start("b", time.Second))
	a.Apply(start("c", 2*time.Second))
	a.Apply(end("b", 3*time.Second))
	a.Apply(end("c", 4*time.Second))

	snap, closed := a.Apply(start("d", time.Minute))
	require.True(t, closed)
	assert.Equal(t, 3, snap.PeakSum())
	assert.Equal(t, 1, snap.CurrentSum())

	cur := a.Snapshot()
	assert.Equal(t, 2, cur.PeakSum(), "peak starts from the carried live count")
}

func TestEmissionSuppressedWhenIdle(t *testing.T) {
	a := New(model.PrecisionSecond)

	a.Apply(start("a", 0))
	snap, closed := a.Advance(base.Add(time.Second))
	require.True(t, closed)
	assert.Equal(t, "20190308:063000", snap.Interval)

	// nothing changed in the following intervals
	_, closed = a.Advance(base.Add(2 * time.Second))
	assert.False(t, closed)
	_, closed = a.Advance(base.Add(3 * time.Second))
	assert.False(t, closed)
	_, closed = a.Flush()
	assert.False(t, closed)
}

func TestOlderEventCountsInCurrentInterval(t *testing.T) {
	a := New(model.PrecisionMinute)

	a.Apply(start("a", 2*time.Minute))
	_, closed := a.Apply(start("b", 0))
	assert.False(t, closed)

	snap := a.Snapshot()
	assert.Equal(t, "20190308:0632", snap.Interval)
	assert.Equal(t, 2, snap.CurrentSum())
}

func TestNoNegativeCounters(t *testing.T) {
	a := New(model.PrecisionMinute)

	a.Apply(end("ghost", 0))
	a.Apply(start("a", time.Second))
	a.Apply(end("a", 2*time.Second))
	a.Apply(end("a", 3*time.Second))

	snap := a.Snapshot()
	assert.Equal(t, 0, snap.Current[key])
	assert.Equal(t, 2, a.Stats().Underflow)
	assert.Equal(t, 4, a.Stats().Events)
}

func TestLinkFilter(t *testing.T) {
	a := New(model.PrecisionMinute, WithLinkFilter("10.0.0.9"))

	a.Apply(start("a", 0))
	a.Apply(ev(model.OpStart, "b", "10.0.0.9", model.DirOut, time.Second))

	snap := a.Snapshot()
	assert.Equal(t, []string{"10.0.0.9"}, snap.Links())
	assert.Equal(t, 1, a.Stats().Filtered)
}

func TestPrecisions(t *testing.T) {
	ts := time.Date(2019, 3, 8, 6, 37, 45, 0, time.UTC)
	tests := map[model.Precision]string{
		model.PrecisionSecond:    "20190308:063745",
		model.PrecisionTenSecond: "20190308:06374",
		model.PrecisionMinute:    "20190308:0637",
		model.PrecisionTenMinute: "20190308:063",
		model.PrecisionHour:      "20190308:06",
		model.PrecisionDay:       "20190308",
	}
	for p, want := range tests {
		a := New(p)
		a.Apply(model.SessionEvent{Op: model.OpStart, Link: "x", Direction: model.DirIn, Timestamp: ts})
		assert.Equal(t, want, a.Interval(), p.String())
	}
}

func TestSharedSerializesPipelines(t *testing.T) {
	shared := NewShared(New(model.PrecisionMinute), 8)

	var (
		snaps []model.IntervalSnapshot
		done  = make(chan error, 1)
	)
	go func() {
		done <- shared.Run(context.Background(), func(s model.IntervalSnapshot) {
			snaps = append(snaps, s)
		})
	}()

	const pipelines, calls = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < pipelines; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			link := fmt.Sprintf("10.0.0.%d", p)
			for i := 0; i < calls; i++ {
				id := fmt.Sprintf("%d-%d", p, i)
				assert.NoError(t, shared.Submit(context.Background(), ev(model.OpStart, id, link, model.DirIn, 0)))
				assert.NoError(t, shared.Advance(context.Background(), base))
				assert.NoError(t, shared.Submit(context.Background(), ev(model.OpEnd, id, link, model.DirIn, 0)))
			}
		}(p)
	}
	wg.Wait()
	shared.Close()
	shared.Close()

	require.NoError(t, <-done)
	require.Len(t, snaps, 1)
	assert.Equal(t, 0, snaps[0].CurrentSum())
	assert.GreaterOrEqual(t, snaps[0].PeakSum(), 1)
	assert.LessOrEqual(t, snaps[0].PeakSum(), pipelines)
}

func TestSharedCancel(t *testing.T) {
	shared := NewShared(New(model.PrecisionMinute), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, shared.Submit(ctx, start("a", 0)), context.Canceled)
	assert.ErrorIs(t, shared.Run(ctx, func(model.IntervalSnapshot) {}), context.Canceled)
}

func TestSharedDrainAfterCancel(t *testing.T) {
	agg := New(model.PrecisionMinute)
	shared := NewShared(agg, 8)

	require.NoError(t, shared.Submit(context.Background(), start("a", 0)))
	require.NoError(t, shared.Submit(context.Background(), start("b", time.Second)))
	require.NoError(t, shared.Advance(context.Background(), base.Add(time.Second)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var emitted []model.IntervalSnapshot
	emit := func(s model.IntervalSnapshot) { emitted = append(emitted, s) }
	assert.ErrorIs(t, shared.Run(ctx, emit), context.Canceled)

	// Run may take some of the queued updates before seeing ctx
	shared.Drain(emit)
	assert.Zero(t, shared.Drain(emit))
	assert.Empty(t, emitted)

	snap, closed := agg.Flush()
	require.True(t, closed)
	assert.Equal(t, 2, snap.CurrentSum())
	assert.Equal(t, 2, snap.PeakSum())

	shared.Close()
	assert.Zero(t, shared.Drain(emit))
}
