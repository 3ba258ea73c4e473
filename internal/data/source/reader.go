package source

import (
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sszokoly/avaya/internal/core/constants"
	"github.com/sszokoly/avaya/internal/util"
)

// countingReader tracks how many raw bytes were consumed from the file,
// used for progress reporting on compressed files.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// fileReader reads lines from one plain or compressed log file and keeps
// incomplete trailing lines until their newline arrives.
type fileReader struct {
	path    string
	file    *os.File
	raw     *countingReader
	closer  func()
	reader  *bufio.Reader
	inode   uint64
	size    int64
	pending strings.Builder
	eof     bool // a read error other than io.EOF ended the stream
}

// openFile opens path, decompressing by extension.
func openFile(path string) (*fileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fr := &fileReader{
		path:   path,
		file:   f,
		raw:    &countingReader{r: f},
		closer: func() {},
	}
	if info, err := util.GetFileInfo(path); err == nil {
		fr.inode = info.Inode
		fr.size = info.Size
	}

	var r io.Reader = fr.raw
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(fr.raw)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		r = gz
		fr.closer = func() { gz.Close() }
	case ".zst":
		zr, err := zstd.NewReader(fr.raw)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		r = zr
		fr.closer = zr.Close
	case ".bz2":
		r = bzip2.NewReader(fr.raw)
	}

	fr.reader = bufio.NewReaderSize(r, 64*1024)
	return fr, nil
}

func (fr *fileReader) compressed() bool {
	switch strings.ToLower(filepath.Ext(fr.path)) {
	case ".gz", ".zst", ".bz2":
		return true
	}
	return false
}

// seekEnd skips the content present at open time.
func (fr *fileReader) seekEnd() error {
	if !fr.compressed() {
		_, err := fr.file.Seek(0, io.SeekEnd)
		fr.raw.n = fr.size
		return err
	}
	_, err := io.Copy(io.Discard, fr.reader)
	return err
}

// readLine returns the next complete line without its line terminator.
// At the current end of the data it returns false; with flush set, a
// buffered incomplete line is returned first.
func (fr *fileReader) readLine(flush bool) (string, bool) {
	if !fr.eof {
		chunk, err := fr.reader.ReadString('\n')
		if err == nil {
			fr.pending.WriteString(chunk)
			return fr.takePending(), true
		}
		fr.pending.WriteString(chunk)
		if !errors.Is(err, io.EOF) {
			// vanished or truncated files end the stream, they are not fatal
			util.LogDebug("log read error treated as EOF",
				util.Field{Key: "file", Value: fr.path}, util.Field{Key: "error", Value: err.Error()})
			fr.eof = true
		}
		if fr.pending.Len() >= constants.MaxLineSize {
			return fr.takePending(), true
		}
	}
	if flush && fr.pending.Len() > 0 {
		return fr.takePending(), true
	}
	return "", false
}

func (fr *fileReader) takePending() string {
	line := strings.TrimRight(fr.pending.String(), "\r\n")
	fr.pending.Reset()
	return line
}

// consumed is the fraction of the file already read.
func (fr *fileReader) consumed() float64 {
	if fr.size <= 0 {
		return 1
	}
	c := float64(fr.raw.n) / float64(fr.size)
	if c > 1 {
		c = 1
	}
	return c
}

func (fr *fileReader) Close() error {
	fr.closer()
	return fr.file.Close()
}
