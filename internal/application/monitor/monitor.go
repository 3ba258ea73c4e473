// Package monitor wires log sources, frame extractors, dialog correlators
// and the shared interval aggregator into one run.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/core/session"
	"github.com/sszokoly/avaya/internal/data/aggregator"
	"github.com/sszokoly/avaya/internal/data/parser"
	"github.com/sszokoly/avaya/internal/data/scanner"
	"github.com/sszokoly/avaya/internal/data/source"
	"github.com/sszokoly/avaya/internal/presentation/formatter"
	"github.com/sszokoly/avaya/internal/util"
)

// PipelineStats are the counters of one source pipeline at its end
type PipelineStats struct {
	Source     string
	Extract    parser.ExtractStats
	Correlator session.CorrelatorStats
	Dialogs    int // dialogs still tracked
}

// Monitor coordinates the pipelines of one run
type Monitor struct {
	config *Config
	out    formatter.Formatter

	mu       sync.Mutex
	stats    []PipelineStats
	aggStats aggregator.Stats
}

// New creates a Monitor writing closed intervals to out.
func New(config *Config, out formatter.Formatter) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Monitor{config: config, out: out}, nil
}

// Run processes the sources until a historical run is exhausted or ctx is
// cancelled. The interval in progress is flushed either way. Cancellation
// is a normal end and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	pipelines, err := m.open(ctx)
	if err != nil {
		return err
	}

	agg := aggregator.New(m.config.Precision(), aggregator.WithLinkFilter(m.config.Links...))
	shared := aggregator.NewShared(agg, m.config.Buffer)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *pipeline) {
			defer wg.Done()
			err := p.run(runCtx, shared)
			m.record(p)
			if err != nil && !errors.Is(err, context.Canceled) {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(p)
	}
	go func() {
		wg.Wait()
		shared.Close()
	}()

	var writeErr error
	emit := func(snap model.IntervalSnapshot) {
		if err := m.out.Write(snap); err != nil && writeErr == nil {
			writeErr = err
			util.LogError("failed to write interval", util.Field{Key: "error", Value: err.Error()})
		}
	}

	if err := shared.Run(runCtx, emit); err != nil {
		// pipelines stop on the cancelled context, the loop no longer
		// owns the aggregator
		wg.Wait()
		if n := shared.Drain(emit); n > 0 {
			util.LogDebug("drained queued updates", util.Field{Key: "count", Value: n})
		}
		if snap, closed := agg.Flush(); closed {
			emit(snap)
		}
	}
	wg.Wait()

	m.mu.Lock()
	m.aggStats = agg.Stats()
	m.mu.Unlock()
	m.logStats()

	if firstErr != nil {
		return firstErr
	}
	return writeErr
}

// Stats returns the counters of the finished pipelines.
func (m *Monitor) Stats() ([]PipelineStats, aggregator.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PipelineStats, len(m.stats))
	copy(out, m.stats)
	return out, m.aggStats
}

func (m *Monitor) record(p *pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, PipelineStats{
		Source:     p.name,
		Extract:    p.extractor.Stats(),
		Correlator: p.correlator.Stats(),
		Dialogs:    p.correlator.Len(),
	})
}

func (m *Monitor) logStats() {
	stats, agg := m.Stats()
	for _, s := range stats {
		util.GetLogger().With(util.Field{Key: string(util.SourceKey), Value: s.Source}).Info("pipeline finished",
			util.Field{Key: "frames", Value: s.Extract.Frames},
			util.Field{Key: "dropped", Value: s.Extract.Dropped},
			util.Field{Key: "sessions_started", Value: s.Correlator.Started},
			util.Field{Key: "sessions_ended", Value: s.Correlator.Ended},
			util.Field{Key: "unknown_dialog", Value: s.Correlator.UnknownDialog},
			util.Field{Key: "out_of_order", Value: s.Correlator.OutOfOrder},
			util.Field{Key: "evicted", Value: s.Correlator.Evicted},
			util.Field{Key: "dialogs", Value: s.Dialogs})
	}
	util.LogInfo("aggregation finished",
		util.Field{Key: "events", Value: agg.Events},
		util.Field{Key: "filtered", Value: agg.Filtered},
		util.Field{Key: "underflow", Value: agg.Underflow})
}

// open creates one pipeline per source. Sources without matching files are
// skipped, it is an error only when none is left.
func (m *Monitor) open(ctx context.Context) ([]*pipeline, error) {
	var pipelines []*pipeline

	add := func(name string, src source.Source, format parser.Format, waiter *source.Waiter) error {
		p, err := newPipeline(context.WithValue(ctx, util.SourceKey, name), m.config, src, format, waiter)
		if err != nil {
			src.Close()
			return err
		}
		pipelines = append(pipelines, p)
		return nil
	}
	fail := func(err error) ([]*pipeline, error) {
		for _, p := range pipelines {
			p.close()
		}
		return nil, err
	}

	loc := util.GetTimeProvider().Location()
	switch {
	case len(m.config.Files) > 0:
		src, err := source.NewHistorical(m.config.Files)
		if err != nil {
			return nil, err
		}
		if err := add(m.config.Files[0], src, m.config.formatFor(m.config.Files[0]), nil); err != nil {
			return fail(err)
		}

	case m.config.Timeframe != nil:
		for _, pattern := range m.config.Sources {
			files, err := scanner.NewFileScanner(pattern).Scan()
			if err != nil {
				return fail(err)
			}
			files = scanner.FilterByTime(files, *m.config.Timeframe, loc)
			if len(files) == 0 {
				util.LogWarn("no log files in timeframe", util.Field{Key: "pattern", Value: pattern})
				continue
			}
			src, err := source.NewHistorical(files)
			if err != nil {
				return fail(err)
			}
			if err := add(pattern, src, m.config.formatFor(files[0]), nil); err != nil {
				return fail(err)
			}
		}

	default:
		var opts []source.FollowOption
		if m.config.FromStart {
			opts = append(opts, source.WithFromStart())
		}
		for _, pattern := range m.config.Sources {
			src, err := source.NewFollow(pattern, opts...)
			if errors.Is(err, source.ErrNoFiles) {
				util.LogWarn("no log file to follow", util.Field{Key: "pattern", Value: pattern})
				continue
			}
			if err != nil {
				return fail(fmt.Errorf("follow %s: %w", pattern, err))
			}
			waiter := source.NewWaiter(filepath.Dir(pattern), m.config.PollInterval)
			if err := add(pattern, src, m.config.formatFor(src.Current()), waiter); err != nil {
				waiter.Close()
				return fail(err)
			}
		}
	}

	if len(pipelines) == 0 {
		return nil, fmt.Errorf("%w: %s", source.ErrNoFiles, strings.Join(m.config.Sources, ", "))
	}
	return pipelines, nil
}
