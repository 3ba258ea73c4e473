package model

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrInvalidPrecision is returned for unknown interval names.
var ErrInvalidPrecision = errors.New("invalid interval precision")

// Precision is the width of an aggregation interval. Its value is the
// number of leading characters of the "20060102:150405" layout kept in
// the interval key.
type Precision int

const (
	PrecisionDay       Precision = 8
	PrecisionHour      Precision = 11
	PrecisionTenMinute Precision = 12
	PrecisionMinute    Precision = 13
	PrecisionTenSecond Precision = 14
	PrecisionSecond    Precision = 15
)

// IntervalLayout is the time layout interval keys are cut from
const IntervalLayout = "20060102:150405"

var precisionNames = map[string]Precision{
	"S":      PrecisionSecond,
	"SEC":    PrecisionSecond,
	"TS":     PrecisionTenSecond,
	"TSEC":   PrecisionTenSecond,
	"TENSEC": PrecisionTenSecond,
	"M":      PrecisionMinute,
	"MIN":    PrecisionMinute,
	"T":      PrecisionTenMinute,
	"TMIN":   PrecisionTenMinute,
	"TENMIN": PrecisionTenMinute,
	"H":      PrecisionHour,
	"HOUR":   PrecisionHour,
	"D":      PrecisionDay,
	"DAY":    PrecisionDay,
}

// ParsePrecision maps an interval name (SEC, TENSEC, MIN, TENMIN, HOUR,
// DAY or their short forms) to a Precision.
func ParsePrecision(name string) (Precision, error) {
	if p, ok := precisionNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return 0, ErrInvalidPrecision
}

func (p Precision) String() string {
	switch p {
	case PrecisionDay:
		return "DAY"
	case PrecisionHour:
		return "HOUR"
	case PrecisionTenMinute:
		return "TENMIN"
	case PrecisionMinute:
		return "MIN"
	case PrecisionTenSecond:
		return "TENSEC"
	case PrecisionSecond:
		return "SEC"
	default:
		return "UNKNOWN"
	}
}

// IntervalKey truncates t to the precision. Keys of the same precision
// sort in time order.
func (p Precision) IntervalKey(t time.Time) string {
	s := t.Format(IntervalLayout)
	if int(p) > 0 && int(p) < len(s) {
		return s[:p]
	}
	return s
}

// IntervalSnapshot is the state of all counters when an interval closed.
type IntervalSnapshot struct {
	Interval string
	Current  map[CounterKey]int
	Peak     map[CounterKey]int
}

func sum(m map[CounterKey]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// CurrentSum is the number of sessions live when the interval closed.
func (s IntervalSnapshot) CurrentSum() int {
	return sum(s.Current)
}

// PeakSum is the highest number of concurrent sessions in the interval.
func (s IntervalSnapshot) PeakSum() int {
	return sum(s.Peak)
}

// Links returns the sorted set of links present in the snapshot.
func (s IntervalSnapshot) Links() []string {
	seen := make(map[string]struct{})
	for k := range s.Current {
		seen[k.Link] = struct{}{}
	}
	for k := range s.Peak {
		seen[k.Link] = struct{}{}
	}
	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}

// CopyCounters returns an independent copy of a counter map.
func CopyCounters(m map[CounterKey]int) map[CounterKey]int {
	out := make(map[CounterKey]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
