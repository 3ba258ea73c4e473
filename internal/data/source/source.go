// Package source yields raw trace log lines from plain or compressed files,
// either from a fixed historical list or by following the newest file of a
// rotating log.
package source

import (
	"errors"
	"path/filepath"

	"github.com/sszokoly/avaya/internal/data/scanner"
	"github.com/sszokoly/avaya/internal/util"
)

// ErrNoFiles is returned when no log file matches at initialization.
var ErrNoFiles = errors.New("no matching log files")

// Status tells the caller what Next produced
type Status int

const (
	StatusLine      Status = iota // a line was returned
	StatusNoData                  // nothing new yet, back off and retry
	StatusExhausted               // historical source fully read
)

func (s Status) String() string {
	switch s {
	case StatusLine:
		return "line"
	case StatusNoData:
		return "no-data"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Source is a pollable stream of log lines.
type Source interface {
	// Next never blocks waiting for data. A non-nil error is fatal for
	// the source.
	Next() (line string, status Status, err error)
	// Current is the path of the file lines are read from.
	Current() string
	// Progress is the percentage of the source consumed so far.
	Progress() float64
	Close() error
}

// Historical reads an ordered list of files once.
type Historical struct {
	files []string
	idx   int
	cur   *fileReader
}

// NewHistorical creates a source over files in the given order.
func NewHistorical(files []string) (*Historical, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return &Historical{files: files}, nil
}

func (h *Historical) Next() (string, Status, error) {
	for {
		if h.cur == nil {
			if h.idx >= len(h.files) {
				return "", StatusExhausted, nil
			}
			path := h.files[h.idx]
			h.idx++
			r, err := openFile(path)
			if err != nil {
				util.LogWarn("skipping unreadable log file",
					util.Field{Key: "file", Value: path}, util.Field{Key: "error", Value: err.Error()})
				continue
			}
			util.LogDebug("reading log file", util.Field{Key: "file", Value: path})
			h.cur = r
		}

		if line, ok := h.cur.readLine(true); ok {
			return line, StatusLine, nil
		}
		h.cur.Close()
		h.cur = nil
	}
}

func (h *Historical) Current() string {
	if h.cur != nil {
		return h.cur.path
	}
	return ""
}

func (h *Historical) Progress() float64 {
	done := float64(h.idx)
	if h.cur != nil {
		done = float64(h.idx-1) + h.cur.consumed()
	}
	return done / float64(len(h.files)) * 100
}

func (h *Historical) Close() error {
	if h.cur != nil {
		err := h.cur.Close()
		h.cur = nil
		return err
	}
	return nil
}

// Follow tails the newest file matching a glob pattern across rotations.
type Follow struct {
	pattern   string
	fromStart bool
	cur       *fileReader
}

// FollowOption configures a Follow source
type FollowOption func(*Follow)

// WithFromStart reads the initial file from its beginning instead of
// reporting only lines appended after start.
func WithFromStart() FollowOption {
	return func(f *Follow) {
		f.fromStart = true
	}
}

// NewFollow opens the newest file matching pattern.
func NewFollow(pattern string, opts ...FollowOption) (*Follow, error) {
	f := &Follow{pattern: pattern}
	for _, opt := range opts {
		opt(f)
	}

	newest, err := newestMatch(pattern)
	if err != nil {
		return nil, err
	}
	if newest == "" {
		return nil, ErrNoFiles
	}

	r, err := openFile(newest)
	if err != nil {
		return nil, err
	}
	if !f.fromStart {
		if err := r.seekEnd(); err != nil {
			r.Close()
			return nil, err
		}
	}
	f.cur = r
	util.LogDebug("following log file", util.Field{Key: "file", Value: newest})
	return f, nil
}

func (f *Follow) Next() (string, Status, error) {
	if f.cur == nil {
		if !f.openNewest() {
			return "", StatusNoData, nil
		}
	}

	if line, ok := f.cur.readLine(false); ok {
		return line, StatusLine, nil
	}
	if !f.rotated() {
		return "", StatusNoData, nil
	}

	// lines appended between the last read and the rotation check
	if line, ok := f.cur.readLine(true); ok {
		return line, StatusLine, nil
	}
	util.LogDebug("log file rotated", util.Field{Key: "file", Value: f.cur.path})
	f.cur.Close()
	f.cur = nil
	if !f.openNewest() {
		return "", StatusNoData, nil
	}
	if line, ok := f.cur.readLine(false); ok {
		return line, StatusLine, nil
	}
	return "", StatusNoData, nil
}

// rotated reports whether a newer file matches the pattern or the current
// path vanished or now names a different file.
func (f *Follow) rotated() bool {
	newest, err := newestMatch(f.pattern)
	if err == nil && newest != "" && newest != f.cur.path {
		return true
	}
	return !util.SameFile(f.cur.path, f.cur.inode)
}

func (f *Follow) openNewest() bool {
	newest, err := newestMatch(f.pattern)
	if err != nil || newest == "" {
		return false
	}
	r, err := openFile(newest)
	if err != nil {
		util.LogDebug("cannot open rotated log file",
			util.Field{Key: "file", Value: newest}, util.Field{Key: "error", Value: err.Error()})
		return false
	}
	f.cur = r
	return true
}

func (f *Follow) Current() string {
	if f.cur != nil {
		return f.cur.path
	}
	return ""
}

// Progress of a follow source is always complete, it only reports new data.
func (f *Follow) Progress() float64 {
	return 100
}

func (f *Follow) Close() error {
	if f.cur != nil {
		err := f.cur.Close()
		f.cur = nil
		return err
	}
	return nil
}

// newestMatch returns the matching file with the latest timestamp in its
// name. SSYNDI names put the year last, so plain name order is wrong
// across a year change.
func newestMatch(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	scanner.SortByTime(matches)
	return matches[len(matches)-1], nil
}
