package formatter

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/sszokoly/avaya/internal/core/model"
)

type jsonRecord struct {
	Interval string      `json:"interval"`
	Current  int         `json:"current"`
	Peak     int         `json:"peak"`
	Links    []LinkCount `json:"links"`
}

// JSONFormatter writes one JSON object per interval and line.
type JSONFormatter struct {
	w        io.Writer
	resolver LabelResolver
}

func NewJSON(w io.Writer, resolver LabelResolver) *JSONFormatter {
	return &JSONFormatter{w: w, resolver: resolver}
}

func (f *JSONFormatter) Write(snap model.IntervalSnapshot) error {
	data, err := sonic.Marshal(jsonRecord{
		Interval: snap.Interval,
		Current:  snap.CurrentSum(),
		Peak:     snap.PeakSum(),
		Links:    group(snap, f.resolver, false),
	})
	if err != nil {
		return err
	}
	_, err = f.w.Write(append(data, '\n'))
	return err
}

func (f *JSONFormatter) Close() error {
	return nil
}
