package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/sszokoly/avaya/internal/util"
)

// Default trace locations on a border controller and a call server
const (
	DefaultTracesbcPattern = "/archive/log/tracesbc/tracesbc_sip/tracesbc_sip_[1-9]*"
	DefaultSsyndiPattern   = "/usr/local/ipcs/log/ss/logfiles/elog/SSYNDI/SSYNDI_*_ELOG_*"
)

// ErrInvalidTimeframe is returned for malformed timeframe strings.
var ErrInvalidTimeframe = errors.New("invalid timeframe, expected yyyymmdd[:HH[MM[SS]]][-yyyymmdd[:HH[MM[SS]]]]")

// FileScanner expands glob patterns into an ordered list of log files
type FileScanner struct {
	patterns []string
}

// NewFileScanner creates a new FileScanner instance
func NewFileScanner(patterns ...string) *FileScanner {
	return &FileScanner{patterns: patterns}
}

// Scan returns the regular files matching any pattern, ordered by the
// timestamp embedded in their names, falling back to name order.
func (s *FileScanner) Scan() ([]string, error) {
	start := time.Now()
	seen := make(map[string]struct{})
	var files []string

	for _, pattern := range s.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			if _, dup := seen[path]; dup {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				// Log: Skip file due to error
				util.LogDebugf("Skip file (error): %s - %v", path, err)
				continue
			}
			if info.IsDir() {
				continue
			}
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	SortByTime(files)
	util.LogDebugf("File scan completed: duration %v, %d patterns, found %d log files",
		time.Since(start), len(s.patterns), len(files))
	return files, nil
}

// Timeframe is a closed time range. A zero End leaves it open.
type Timeframe struct {
	Start time.Time
	End   time.Time
}

var timeframePart = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(?::(\d{2})(\d{2})?(\d{2})?)?$`)

// ParseTimeframe parses "yyyymmdd[:HH[MM[SS]]][-yyyymmdd[:HH[MM[SS]]]]"
// in loc.
func ParseTimeframe(s string, loc *time.Location) (Timeframe, error) {
	var tf Timeframe
	startStr, endStr, hasEnd := cutDash(s)

	start, err := parseTimeframePart(startStr, loc)
	if err != nil {
		return tf, err
	}
	tf.Start = start

	if hasEnd {
		end, err := parseTimeframePart(endStr, loc)
		if err != nil {
			return tf, err
		}
		if end.Before(start) {
			return tf, fmt.Errorf("%w: end before start", ErrInvalidTimeframe)
		}
		tf.End = end
	}
	return tf, nil
}

func cutDash(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func parseTimeframePart(s string, loc *time.Location) (time.Time, error) {
	m := timeframePart.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	n := make([]int, 6)
	for i, g := range m[1:] {
		if g != "" {
			n[i], _ = strconv.Atoi(g)
		}
	}
	t := time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc)
	if t.Month() != time.Month(n[1]) || t.Day() != n[2] || n[3] > 23 || n[4] > 59 || n[5] > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return t, nil
}

// Last returns the timeframe covering the last hours up to now.
func Last(hours int, now time.Time) Timeframe {
	return Timeframe{Start: now.Add(-time.Duration(hours) * time.Hour)}
}

var (
	tracesbcName = regexp.MustCompile(`_(\d{10})`)
	ssyndiName   = regexp.MustCompile(`SSYNDI_\d+_ELOG_(\d{2})_(\d{2})_(\d{4})(?:_(\d{2})_(\d{2})_(\d{2}))?`)
	ecsName      = regexp.MustCompile(`^(\d{8})(?::?(\d{6}))?`)
)

// FileTime extracts the timestamp embedded in a trace file name.
// SSYNDI and ecs names are wall clock, read in loc.
func FileTime(path string, loc *time.Location) (time.Time, bool) {
	base := filepath.Base(path)

	if m := ssyndiName.FindStringSubmatch(base); m != nil {
		ts := m[3] + m[1] + m[2] + m[4] + m[5] + m[6]
		layout := "20060102150405"[:len(ts)]
		t, err := time.ParseInLocation(layout, ts, loc)
		return t, err == nil
	}
	if m := ecsName.FindStringSubmatch(base); m != nil {
		ts := m[1] + m[2]
		layout := "20060102150405"[:len(ts)]
		t, err := time.ParseInLocation(layout, ts, loc)
		return t, err == nil
	}
	if m := tracesbcName.FindStringSubmatch(base); m != nil {
		epoch, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(epoch, 0).In(loc), true
	}
	return time.Time{}, false
}

// SortByTime orders files by embedded timestamp. Names without one sort
// by name after those with one.
func SortByTime(files []string) {
	loc := util.GetTimeProvider().Location()
	sort.SliceStable(files, func(i, j int) bool {
		ti, oki := FileTime(files[i], loc)
		tj, okj := FileTime(files[j], loc)
		switch {
		case oki && okj:
			if ti.Equal(tj) {
				return files[i] < files[j]
			}
			return ti.Before(tj)
		case oki != okj:
			return oki
		default:
			return files[i] < files[j]
		}
	})
}

// FilterByTime keeps the time ordered files whose embedded timestamp falls
// within tf, plus the file before the first of them since it may hold the
// start of the range. Files without a timestamp are dropped.
func FilterByTime(files []string, tf Timeframe, loc *time.Location) []string {
	type stamped struct {
		path string
		t    time.Time
	}
	var list []stamped
	for _, f := range files {
		if t, ok := FileTime(f, loc); ok {
			list = append(list, stamped{f, t})
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].t.Before(list[j].t) })

	first := -1
	for i, s := range list {
		if !s.t.Before(tf.Start) {
			first = i
			break
		}
	}
	if first == -1 {
		// every file started before the range, the newest may still cover it
		if len(list) > 0 {
			return []string{list[len(list)-1].path}
		}
		return nil
	}
	if first > 0 {
		first--
	}

	var out []string
	for _, s := range list[first:] {
		if !tf.End.IsZero() && s.t.After(tf.End) {
			break
		}
		out = append(out, s.path)
	}
	return out
}
