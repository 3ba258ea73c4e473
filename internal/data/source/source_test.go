package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects lines until the source reports something other than a line.
func drain(t *testing.T, src Source) ([]string, Status) {
	t.Helper()
	var lines []string
	for {
		line, status, err := src.Next()
		require.NoError(t, err)
		if status != StatusLine {
			return lines, status
		}
		lines = append(lines, line)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestHistoricalReadsFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	writeFile(t, a, "one\r\ntwo\n")
	writeFile(t, b, "three\nfour") // no trailing newline

	src, err := NewHistorical([]string{a, filepath.Join(dir, "missing.log"), b})
	require.NoError(t, err)
	defer src.Close()

	lines, status := drain(t, src)
	assert.Equal(t, []string{"one", "two", "three", "four"}, lines)
	assert.Equal(t, StatusExhausted, status)
	assert.Equal(t, float64(100), src.Progress())

	// exhaustion is terminal
	_, status, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, status)
}

func TestHistoricalNoFiles(t *testing.T) {
	_, err := NewHistorical(nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestHistoricalCompressed(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("gz line 1\ngz line 2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := filepath.Join(dir, "trace.log.gz")
	writeFile(t, gzPath, gz.String())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstPath := filepath.Join(dir, "trace.log.zst")
	writeFile(t, zstPath, string(enc.EncodeAll([]byte("zst line\n"), nil)))
	require.NoError(t, enc.Close())

	src, err := NewHistorical([]string{gzPath, zstPath})
	require.NoError(t, err)
	defer src.Close()

	lines, status := drain(t, src)
	assert.Equal(t, []string{"gz line 1", "gz line 2", "zst line"}, lines)
	assert.Equal(t, StatusExhausted, status)
}

func TestHistoricalTruncatedGzipIsEOF(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(bytes.Repeat([]byte("some trace line\n"), 200))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(dir, "cut.gz")
	writeFile(t, path, gz.String()[:gz.Len()/2])

	src, err := NewHistorical([]string{path})
	require.NoError(t, err)
	defer src.Close()

	_, status := drain(t, src)
	assert.Equal(t, StatusExhausted, status)
}

func TestFollowNoFiles(t *testing.T) {
	_, err := NewFollow(filepath.Join(t.TempDir(), "*.log"))
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestFollowStartsAtEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace_001.log")
	writeFile(t, path, "old line\n")

	src, err := NewFollow(filepath.Join(dir, "trace_*.log"))
	require.NoError(t, err)
	defer src.Close()

	lines, status := drain(t, src)
	assert.Empty(t, lines)
	assert.Equal(t, StatusNoData, status)

	appendFile(t, path, "new li")
	lines, status = drain(t, src)
	assert.Empty(t, lines, "partial line must be held back")
	assert.Equal(t, StatusNoData, status)

	appendFile(t, path, "ne\n")
	lines, _ = drain(t, src)
	assert.Equal(t, []string{"new line"}, lines)
	assert.Equal(t, path, src.Current())
}

func TestFollowRotationToNewerFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "trace_001.log")
	writeFile(t, first, "a\nb\n")

	src, err := NewFollow(filepath.Join(dir, "trace_*.log"), WithFromStart())
	require.NoError(t, err)
	defer src.Close()

	lines, status := drain(t, src)
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.Equal(t, StatusNoData, status)

	// the tail of the old file and the new file are both delivered
	appendFile(t, first, "c")
	second := filepath.Join(dir, "trace_002.log")
	writeFile(t, second, "d\n")

	lines, status = drain(t, src)
	assert.Equal(t, []string{"c", "d"}, lines)
	assert.Equal(t, StatusNoData, status)
	assert.Equal(t, second, src.Current())
}

func TestFollowPicksNewestSsyndiAcrossYear(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "SSYNDI_04_ELOG_12_31_2019_23_00_00"), "old\n")
	newest := filepath.Join(dir, "SSYNDI_04_ELOG_01_01_2020_00_10_00")
	writeFile(t, newest, "new\n")

	src, err := NewFollow(filepath.Join(dir, "SSYNDI_*_ELOG_*"), WithFromStart())
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, newest, src.Current())
	lines, _ := drain(t, src)
	assert.Equal(t, []string{"new"}, lines)
}

func TestFollowRotatesAcrossYear(t *testing.T) {
	dir := t.TempDir()
	december := filepath.Join(dir, "SSYNDI_04_ELOG_12_31_2019_23_00_00")
	writeFile(t, december, "a\n")

	src, err := NewFollow(filepath.Join(dir, "SSYNDI_*_ELOG_*"), WithFromStart())
	require.NoError(t, err)
	defer src.Close()

	lines, _ := drain(t, src)
	assert.Equal(t, []string{"a"}, lines)

	january := filepath.Join(dir, "SSYNDI_04_ELOG_01_01_2020_00_10_00")
	writeFile(t, january, "b\n")

	lines, _ = drain(t, src)
	assert.Equal(t, []string{"b"}, lines)
	assert.Equal(t, january, src.Current())
}

func TestFollowRotationSamePathNewInode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracesbc_sip")
	writeFile(t, path, "first\n")

	src, err := NewFollow(path, WithFromStart())
	require.NoError(t, err)
	defer src.Close()

	lines, _ := drain(t, src)
	assert.Equal(t, []string{"first"}, lines)

	require.NoError(t, os.Rename(path, filepath.Join(dir, "rotated.1")))
	writeFile(t, path, "second\n")

	lines, _ = drain(t, src)
	assert.Equal(t, []string{"second"}, lines)
}

func TestFollowVanishedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace_001.log")
	writeFile(t, path, "x\n")

	src, err := NewFollow(filepath.Join(dir, "trace_*.log"), WithFromStart())
	require.NoError(t, err)
	defer src.Close()

	drain(t, src)
	require.NoError(t, os.Remove(path))

	lines, status := drain(t, src)
	assert.Empty(t, lines)
	assert.Equal(t, StatusNoData, status)

	writeFile(t, filepath.Join(dir, "trace_002.log"), "y\n")
	lines, _ = drain(t, src)
	assert.Equal(t, []string{"y"}, lines)
}

func TestWaiter(t *testing.T) {
	dir := t.TempDir()
	w := NewWaiter(dir, 20*time.Millisecond)
	defer w.Close()

	start := time.Now()
	require.NoError(t, w.Wait(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.Canceled)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "line", StatusLine.String())
	assert.Equal(t, "no-data", StatusNoData.String())
	assert.Equal(t, "exhausted", StatusExhausted.String())
}
