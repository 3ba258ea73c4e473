package formatter

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sszokoly/avaya/internal/core/model"
)

// Formatter renders interval snapshots as they are emitted.
type Formatter interface {
	Write(snap model.IntervalSnapshot) error
	Close() error
}

// LabelResolver maps a link address to a display label
type LabelResolver interface {
	Label(ip string) string
}

// Output formats
const (
	KindTable = "table"
	KindJSON  = "json"
	KindCSV   = "csv"
)

// New creates the formatter named by kind.
func New(kind string, w io.Writer, active bool, resolver LabelResolver) (Formatter, error) {
	switch strings.ToLower(kind) {
	case "", KindTable:
		return NewTable(w, active, resolver), nil
	case KindJSON:
		return NewJSON(w, resolver), nil
	case KindCSV:
		return NewCSV(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", kind)
}

// LinkCount is the counters of one display column
type LinkCount struct {
	Link       string `json:"link"`
	Label      string `json:"label,omitempty"`
	CurrentIn  int    `json:"current_in"`
	CurrentOut int    `json:"current_out"`
	PeakIn     int    `json:"peak_in"`
	PeakOut    int    `json:"peak_out"`
}

// group folds the snapshot counters into one LinkCount per label. With
// merge set, links sharing a label (the addresses of one interface) are
// summed, otherwise every link keeps its own entry.
func group(snap model.IntervalSnapshot, resolver LabelResolver, merge bool) []LinkCount {
	byLabel := make(map[string]*LinkCount)
	var order []string

	get := func(link string) *LinkCount {
		label := link
		if resolver != nil {
			label = resolver.Label(link)
		}
		key := link
		if merge {
			key = label
		}
		lc, ok := byLabel[key]
		if !ok {
			lc = &LinkCount{Link: link}
			if label != link {
				lc.Label = label
			}
			byLabel[key] = lc
			order = append(order, key)
		}
		return lc
	}

	for _, link := range snap.Links() {
		lc := get(link)
		in := model.CounterKey{Link: link, Direction: model.DirIn}
		out := model.CounterKey{Link: link, Direction: model.DirOut}
		lc.CurrentIn += snap.Current[in]
		lc.CurrentOut += snap.Current[out]
		lc.PeakIn += snap.Peak[in]
		lc.PeakOut += snap.Peak[out]
	}

	sort.Strings(order)
	out := make([]LinkCount, 0, len(order))
	for _, label := range order {
		out = append(out, *byLabel[label])
	}
	return out
}

// Multi writes every snapshot to all formatters.
type Multi []Formatter

func (m Multi) Write(snap model.IntervalSnapshot) error {
	var errs []error
	for _, f := range m {
		if err := f.Write(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, f := range m {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, digit)
	}

	return string(result)
}

// Name returns the label of the entry, or its address when unlabelled.
func (lc LinkCount) Name() string {
	if lc.Label != "" {
		return lc.Label
	}
	return lc.Link
}
