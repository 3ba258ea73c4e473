// Package parser turns raw trace log lines into SIP message frames. Each
// supported trace format has its own Extractor; extractors are stateful
// and must be fed the lines of one source in order.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/sszokoly/avaya/internal/core/constants"
	"github.com/sszokoly/avaya/internal/core/model"
)

// Format identifies a trace framing convention
type Format string

const (
	FormatBracket Format = "tracesbc" // border controller tracesbc_sip
	FormatTagged  Format = "ssyndi"   // call control debug in SSYNDI
	FormatHex     Format = "ecs"      // switch MST trace
)

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatBracket:
		return FormatBracket, nil
	case FormatTagged:
		return FormatTagged, nil
	case FormatHex:
		return FormatHex, nil
	}
	return "", fmt.Errorf("unknown trace format %q", name)
}

// DetectFormat guesses the trace format from a log file name.
func DetectFormat(filename string) Format {
	base := filepath.Base(filename)
	switch {
	case strings.Contains(base, "SSYNDI"):
		return FormatTagged
	case strings.Contains(base, "tracesbc"):
		return FormatBracket
	case strings.HasPrefix(base, "20"):
		return FormatHex
	default:
		return FormatBracket
	}
}

// ExtractStats counts extractor output
type ExtractStats struct {
	Frames  int // frames emitted
	Dropped int // malformed or unterminated frames discarded
}

// Extractor assembles frames from lines.
type Extractor interface {
	// Feed consumes one line and returns a frame when the line completed
	// one.
	Feed(line string) (model.Frame, bool)
	// Flush is called at the end of the source. It returns the frame in
	// progress if enough of it was collected, otherwise discards it.
	Flush() (model.Frame, bool)
	Stats() ExtractStats
}

type options struct {
	cacheSize int
	location  *time.Location
}

// Option configures an Extractor
type Option func(*options)

// WithCacheSize bounds the address line cache.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithLocation sets the timezone trace timestamps are written in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// New creates an extractor for the format.
func New(format Format, opts ...Option) (Extractor, error) {
	o := options{
		cacheSize: constants.DefaultAddrCacheSize,
		location:  time.Local,
	}
	for _, opt := range opts {
		opt(&o)
	}
	addrs := newAddrCache(o.cacheSize)

	switch format {
	case FormatBracket:
		return &bracketExtractor{addrs: addrs, loc: o.location}, nil
	case FormatTagged:
		return &taggedExtractor{addrs: addrs, loc: o.location}, nil
	case FormatHex:
		return &hexExtractor{addrs: addrs, loc: o.location}, nil
	}
	return nil, fmt.Errorf("unknown trace format %q", format)
}

// addrCache memoizes address line parsing. The same link produces the
// identical address line for every message crossing it.
type addrCache struct {
	lru *simplelru.LRU[string, model.Endpoints]
}

func newAddrCache(size int) *addrCache {
	if size < 1 {
		size = 1
	}
	lru, _ := simplelru.NewLRU[string, model.Endpoints](size, nil)
	return &addrCache{lru: lru}
}

func (c *addrCache) lookup(line string, parse func(string) (model.Endpoints, bool)) (model.Endpoints, bool) {
	if ep, ok := c.lru.Get(line); ok {
		return ep, true
	}
	ep, ok := parse(line)
	if ok {
		c.lru.Add(line, ep)
	}
	return ep, ok
}

func (c *addrCache) len() int {
	return c.lru.Len()
}

// parseTraceTime parses "MM-DD-YYYY:HH.MM.SS.ffffff". Trace writers pad
// with spaces instead of zeros.
func parseTraceTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "0")
	t, err := time.ParseInLocation("01-02-2006:15.04.05", s, loc)
	return t, err == nil
}
