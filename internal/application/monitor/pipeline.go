package monitor

import (
	"context"
	"fmt"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/core/session"
	"github.com/sszokoly/avaya/internal/data/aggregator"
	"github.com/sszokoly/avaya/internal/data/parser"
	"github.com/sszokoly/avaya/internal/data/source"
	"github.com/sszokoly/avaya/internal/util"
)

// lines read between cancellation checks
const cancelCheckLines = 4096

// pipeline runs Source -> Extractor -> Correlator for one source, in log
// order, and submits the resulting events to the shared aggregator.
type pipeline struct {
	name       string
	precision  model.Precision
	src        source.Source
	extractor  parser.Extractor
	correlator *session.Correlator
	waiter     *source.Waiter // nil for historical sources
	log        util.LoggerInterface

	file     string
	interval string
}

// newPipeline names the pipeline after the util.SourceKey value of ctx
// and logs with it.
func newPipeline(ctx context.Context, cfg *Config, src source.Source, format parser.Format, waiter *source.Waiter) (*pipeline, error) {
	extractor, err := parser.New(format, parser.WithLocation(util.GetTimeProvider().Location()))
	if err != nil {
		return nil, err
	}
	name, _ := ctx.Value(util.SourceKey).(string)
	log := util.GetLogger().WithContext(ctx)
	log.Info("pipeline started",
		util.Field{Key: "format", Value: string(format)},
		util.Field{Key: "follow", Value: waiter != nil})

	return &pipeline{
		log:       log,
		name:      name,
		precision: cfg.Precision(),
		src:       src,
		extractor: extractor,
		correlator: session.NewCorrelator(
			session.WithMaxDialogs(cfg.MaxDialogs),
			session.WithMaxAge(cfg.MaxDialogAge),
		),
		waiter: waiter,
	}, nil
}

func (p *pipeline) run(ctx context.Context, shared *aggregator.Shared) error {
	defer p.close()

	for n := 0; ; n++ {
		if n%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, status, err := p.src.Next()
		if err != nil {
			return fmt.Errorf("source %s: %w", p.name, err)
		}

		switch status {
		case source.StatusLine:
			p.trackFile()
			if frame, ok := p.extractor.Feed(line); ok {
				if err := p.handle(ctx, frame, shared); err != nil {
					return err
				}
			}

		case source.StatusNoData:
			if p.waiter == nil {
				continue
			}
			if err := p.waiter.Wait(ctx); err != nil {
				return err
			}

		case source.StatusExhausted:
			if frame, ok := p.extractor.Flush(); ok {
				if err := p.handle(ctx, frame, shared); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

// handle advances the shared interval when the frame opens a new one, then
// correlates it.
func (p *pipeline) handle(ctx context.Context, frame model.Frame, shared *aggregator.Shared) error {
	frame.Source = p.file

	if key := p.precision.IntervalKey(frame.Timestamp); key != p.interval {
		p.interval = key
		if err := shared.Advance(ctx, frame.Timestamp); err != nil {
			return err
		}
	}

	for _, ev := range p.correlator.Process(frame) {
		if err := shared.Submit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) trackFile() {
	current := p.src.Current()
	if current == p.file {
		return
	}
	p.file = current
	p.log.Debug("reading log file",
		util.Field{Key: "file", Value: current},
		util.Field{Key: "progress", Value: fmt.Sprintf("%.0f%%", p.src.Progress())})
}

func (p *pipeline) close() {
	if p.waiter != nil {
		p.waiter.Close()
	}
	if err := p.src.Close(); err != nil {
		p.log.Debug("closing source", util.Field{Key: "error", Value: err.Error()})
	}
}
