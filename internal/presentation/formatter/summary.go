package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/util"
)

type linkPeak struct {
	in, out  int
	interval string
}

// SummaryFormatter collects every interval and prints a report of the run
// on Close.
type SummaryFormatter struct {
	w         io.Writer
	resolver  LabelResolver
	first     string
	last      string
	intervals int
	peak      int
	peakAt    string
	links     map[string]*linkPeak
}

// NewSummary creates a SummaryFormatter writing to w.
func NewSummary(w io.Writer, resolver LabelResolver) *SummaryFormatter {
	return &SummaryFormatter{
		w:        w,
		resolver: resolver,
		links:    make(map[string]*linkPeak),
	}
}

func (f *SummaryFormatter) Write(snap model.IntervalSnapshot) error {
	if f.first == "" {
		f.first = snap.Interval
	}
	f.last = snap.Interval
	f.intervals++

	if sum := snap.PeakSum(); sum > f.peak {
		f.peak = sum
		f.peakAt = snap.Interval
	}

	for _, g := range group(snap, f.resolver, true) {
		lp, ok := f.links[g.Name()]
		if !ok {
			lp = &linkPeak{}
			f.links[g.Name()] = lp
		}
		if g.PeakIn+g.PeakOut > lp.in+lp.out {
			lp.in, lp.out, lp.interval = g.PeakIn, g.PeakOut, snap.Interval
		}
	}
	return nil
}

// Close writes the report.
func (f *SummaryFormatter) Close() error {
	var b strings.Builder

	fmt.Fprintln(&b, strings.Repeat("=", 60))
	fmt.Fprintln(&b, util.CenterText("SIP Session Summary Report", 60))
	fmt.Fprintln(&b, strings.Repeat("=", 60))
	fmt.Fprintln(&b)

	if f.intervals == 0 {
		fmt.Fprintln(&b, "No sessions to summarize")
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, strings.Repeat("=", 60))
		_, err := io.WriteString(f.w, b.String())
		return err
	}

	if f.first == f.last {
		fmt.Fprintf(&b, "Interval: %s\n", f.first)
	} else {
		fmt.Fprintf(&b, "Interval Range: %s to %s\n", f.first, f.last)
	}
	fmt.Fprintf(&b, "Intervals Reported: %s\n", formatNumber(f.intervals))
	fmt.Fprintf(&b, "Peak Sessions: %s at %s\n", formatNumber(f.peak), f.peakAt)
	fmt.Fprintln(&b)

	if len(f.links) > 0 {
		fmt.Fprintln(&b, "Link Peaks:")
		fmt.Fprintln(&b, strings.Repeat("-", 60))

		names := make([]string, 0, len(f.links))
		for name := range f.links {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			lp := f.links[name]
			fmt.Fprintf(&b, "\n%s:\n", name)
			fmt.Fprintf(&b, "  Peak IN:              %s\n", formatNumber(lp.in))
			fmt.Fprintf(&b, "  Peak OUT:             %s\n", formatNumber(lp.out))
			fmt.Fprintf(&b, "  Peak Total:           %s\n", formatNumber(lp.in+lp.out))
			fmt.Fprintf(&b, "  Reached At:           %s\n", lp.interval)
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, strings.Repeat("=", 60))

	_, err := io.WriteString(f.w, b.String())
	return err
}
