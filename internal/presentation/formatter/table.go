package formatter

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/util"
)

const (
	columnWidth = 16
	leftMargin  = 16
	totalWidth  = 10
)

// TableFormatter prints one line per interval with IN and OUT counts for
// every link. The header is repeated every page of terminal rows and
// whenever a new link shows up, since that changes the columns.
type TableFormatter struct {
	w        io.Writer
	active   bool
	resolver LabelResolver
	color    bool
	pageRows int
	rows     int
	seen     map[string]struct{}
}

// TableOption configures a TableFormatter
type TableOption func(*TableFormatter)

// WithColor highlights the header lines
func WithColor(enabled bool) TableOption {
	return func(f *TableFormatter) {
		f.color = enabled
	}
}

// WithPageRows sets how many interval lines are printed between headers.
func WithPageRows(n int) TableOption {
	return func(f *TableFormatter) {
		if n > 0 {
			f.pageRows = n
		}
	}
}

// NewTable prints peak counts, or the live counts at interval close when
// active is set.
func NewTable(w io.Writer, active bool, resolver LabelResolver, opts ...TableOption) *TableFormatter {
	_, height := util.TerminalSize()
	f := &TableFormatter{
		w:        w,
		active:   active,
		resolver: resolver,
		pageRows: max(height-2, 1),
		seen:     make(map[string]struct{}),
	}
	if file, ok := w.(*os.File); ok {
		f.color = util.IsTerminal(file)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *TableFormatter) Write(snap model.IntervalSnapshot) error {
	if snap.PeakSum() == 0 {
		return nil
	}

	groups := group(snap, f.resolver, true)
	for _, g := range groups {
		if _, ok := f.seen[g.Name()]; !ok {
			f.seen[g.Name()] = struct{}{}
			f.rows = 0
		}
	}

	var b strings.Builder
	if f.rows == 0 {
		f.header(&b, groups)
	}

	total := 0
	b.WriteString(util.PadRight(snap.Interval, leftMargin))
	for _, g := range groups {
		in, out := g.PeakIn, g.PeakOut
		if f.active {
			in, out = g.CurrentIn, g.CurrentOut
		}
		total += in + out
		b.WriteString(util.PadLeft(strconv.Itoa(in), columnWidth/2))
		b.WriteString(util.PadLeft(strconv.Itoa(out), columnWidth/2))
	}
	b.WriteString(util.PadLeft(strconv.Itoa(total), totalWidth))
	b.WriteByte('\n')

	f.rows++
	if f.rows >= f.pageRows {
		f.rows = 0
	}

	_, err := io.WriteString(f.w, b.String())
	return err
}

func (f *TableFormatter) header(b *strings.Builder, groups []LinkCount) {
	title := "Peak sessions"
	if f.active {
		title = "Active sessions"
	}

	var names, dirs strings.Builder
	names.WriteString(util.PadRight(title, leftMargin))
	dirs.WriteString(strings.Repeat(" ", leftMargin))
	for _, g := range groups {
		names.WriteString(util.PadLeft(util.Truncate(g.Name(), columnWidth-1), columnWidth))
		dirs.WriteString(util.PadLeft("IN", columnWidth/2))
		dirs.WriteString(util.PadLeft("OUT", columnWidth/2))
	}
	names.WriteString(util.PadLeft("Total", totalWidth))

	if f.color {
		fmt.Fprintf(b, "%s\n%s%s%s\n", util.FormatHeaderTitle(names.String()),
			util.ColorCyan, dirs.String(), util.ColorReset)
		return
	}
	fmt.Fprintf(b, "%s\n%s\n", names.String(), dirs.String())
}

func (f *TableFormatter) Close() error {
	return nil
}
