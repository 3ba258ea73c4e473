package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sszokoly/avaya/internal/core/constants"
	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/core/session"
	"github.com/sszokoly/avaya/internal/data/parser"
	"github.com/sszokoly/avaya/internal/data/scanner"
)

// Config contains configuration for a monitoring run
type Config struct {
	// Sources are glob patterns. Each pattern is one pipeline with its
	// own dialog table.
	Sources []string
	// Files are read once in the given order instead of following
	// Sources.
	Files []string
	// Timeframe selects historical files from Sources by the time in
	// their names.
	Timeframe *scanner.Timeframe

	// Trace format, empty to detect from the file name
	Format string
	// Interval precision name (SEC, TENSEC, MIN, TENMIN, HOUR, DAY)
	Interval string
	// Links restricts counting to these local addresses
	Links []string

	// Correlator limits
	MaxDialogs   int
	MaxDialogAge time.Duration

	// Follow mode settings
	PollInterval time.Duration
	FromStart    bool

	// Capacity of the channel between pipelines and the aggregator
	Buffer int

	precision model.Precision
	format    parser.Format
}

// Historical reports whether the run reads a finite set of files.
func (c *Config) Historical() bool {
	return len(c.Files) > 0 || c.Timeframe != nil
}

// Precision returns the interval precision parsed by Validate.
func (c *Config) Precision() model.Precision {
	return c.precision
}

// Validate fills defaults and checks the configuration
func (c *Config) Validate() error {
	if len(c.Sources) == 0 && len(c.Files) == 0 {
		c.Sources = []string{scanner.DefaultTracesbcPattern, scanner.DefaultSsyndiPattern}
	}
	if c.Interval == "" {
		c.Interval = "MIN"
	}
	p, err := model.ParsePrecision(c.Interval)
	if err != nil {
		return fmt.Errorf("interval %q: %w", c.Interval, err)
	}
	c.precision = p

	if c.Format != "" {
		f, err := parser.ParseFormat(c.Format)
		if err != nil {
			return err
		}
		c.format = f
	}

	if c.MaxDialogs == 0 {
		c.MaxDialogs = session.DefaultCorrelatorConfig.MaxDialogs
	}
	if c.MaxDialogs < 0 {
		return errors.New("max dialogs must be positive")
	}
	// zero disables age eviction
	if c.MaxDialogAge < 0 {
		return errors.New("max dialog age must not be negative")
	}
	if c.PollInterval == 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	if c.PollInterval < 0 || c.PollInterval > constants.MaxPollInterval {
		return fmt.Errorf("poll interval must be between 0 and %s", constants.MaxPollInterval)
	}
	if c.Buffer <= 0 {
		c.Buffer = constants.DefaultEventBuffer
	}
	return nil
}

// formatFor returns the configured format or the one detected from name.
func (c *Config) formatFor(name string) parser.Format {
	if c.format != "" {
		return c.format
	}
	return parser.DetectFormat(name)
}
