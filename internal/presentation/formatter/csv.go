package formatter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sszokoly/avaya/internal/core/model"
)

var csvHeader = []string{"interval", "link", "direction", "current", "peak"}

// CSVFormatter writes one record per link and direction.
type CSVFormatter struct {
	w      *csv.Writer
	header bool
}

func NewCSV(w io.Writer) *CSVFormatter {
	return &CSVFormatter{w: csv.NewWriter(w)}
}

func (f *CSVFormatter) Write(snap model.IntervalSnapshot) error {
	if !f.header {
		if err := f.w.Write(csvHeader); err != nil {
			return err
		}
		f.header = true
	}

	for _, link := range snap.Links() {
		for _, dir := range []model.Direction{model.DirIn, model.DirOut} {
			key := model.CounterKey{Link: link, Direction: dir}
			record := []string{
				snap.Interval,
				link,
				string(dir),
				strconv.Itoa(snap.Current[key]),
				strconv.Itoa(snap.Peak[key]),
			}
			if err := f.w.Write(record); err != nil {
				return err
			}
		}
	}

	f.w.Flush()
	return f.w.Error()
}

func (f *CSVFormatter) Close() error {
	f.w.Flush()
	return f.w.Error()
}
