package commands

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/data/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trace = "[03-08-2019:12.00.10.000000]\n" +
	"IN: 10.0.0.2:5060 --> 10.0.0.1:5060 (UDP)\n" +
	"INVITE sip:1000@10.0.0.1 SIP/2.0\nTo: <sip:1000@10.0.0.1>\nCall-ID: a\nCSeq: 1 INVITE\n\n" +
	"--\n" +
	"[03-08-2019:12.00.11.000000]\n" +
	"OUT: 10.0.0.1:5060 --> 10.0.0.2:5060 (UDP)\n" +
	"SIP/2.0 200 OK\nTo: <sip:1000@10.0.0.1>;tag=x\nCall-ID: a\nCSeq: 1 INVITE\n\n" +
	"--\n"

// resetFlags restores the flag variables changed by a test.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		debug, logFile = false, filepath.Join(os.TempDir(), "sipsessions-test.log")
		sources, traceFormat, timeframe, lastHours, fromStart = nil, "", "", 0, false
		interval, linkFilter, maxDialogs, maxDialogAge, pollInterval = "MIN", "", 0, 0, 0
		outputFormat, outputFile, active, verbose, labelsFile, summary = "table", "", false, false, "", false
		timezone = "UTC"
	}
	reset()
	t.Cleanup(reset)
}

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		args    []string
		wantErr string
	}{
		{
			name:    "timeframe and last",
			setup:   func() { timeframe, lastHours = "20190308", 2 },
			wantErr: "mutually exclusive",
		},
		{
			name:    "negative last",
			setup:   func() { lastHours = -1 },
			wantErr: "--last must be positive",
		},
		{
			name:    "timeframe with files",
			setup:   func() { timeframe = "20190308" },
			args:    []string{"tracesbc_sip_1552046400"},
			wantErr: "not FILE arguments",
		},
		{
			name:    "bad timeframe",
			setup:   func() { timeframe = "2019-03-08" },
			wantErr: "invalid timeframe",
		},
		{
			name:    "bad interval",
			setup:   func() { interval = "WEEK" },
			wantErr: "invalid interval precision",
		},
		{
			name:    "bad trace format",
			setup:   func() { traceFormat = "pcap" },
			wantErr: "pcap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			tt.setup()
			_, err := buildConfig(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildConfigValues(t *testing.T) {
	resetFlags(t)
	sources = []string{"/var/log/tracesbc_sip_*"}
	linkFilter = "10.0.0.1| 10.0.0.2 ||"
	interval = "tensec"
	maxDialogAge = time.Hour
	lastHours = 3

	config, err := buildConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/var/log/tracesbc_sip_*"}, config.Sources)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, config.Links)
	assert.Equal(t, model.PrecisionTenSecond, config.Precision())
	assert.Equal(t, time.Hour, config.MaxDialogAge)
	require.NotNil(t, config.Timeframe)
	assert.True(t, config.Historical())
	assert.WithinDuration(t, time.Now().Add(-3*time.Hour), config.Timeframe.Start, time.Minute)
}

func TestParseFilter(t *testing.T) {
	assert.Nil(t, parseFilter(""))
	assert.Equal(t, []string{"10.0.0.1"}, parseFilter("10.0.0.1"))
	assert.Equal(t, []string{"a", "b"}, parseFilter(" a |b|"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "test/path"), expandPath("~/test/path"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
	abs, _ := filepath.Abs("relative/path")
	assert.Equal(t, abs, expandPath("relative/path"))
	assert.Nil(t, expandPaths(nil))
}

func TestEnsureDir(t *testing.T) {
	testDir := filepath.Join(t.TempDir(), "test", "nested", "dir")

	require.NoError(t, ensureDir(testDir))
	info, err := os.Stat(testDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Test idempotency
	assert.NoError(t, ensureDir(testDir))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommandHistoricalCSV(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tracesbc_sip_1552046400")
	require.NoError(t, os.WriteFile(path, []byte(trace), 0o644))

	out, err := execute(t, "--log-file", filepath.Join(dir, "app.log"), "--timezone", "UTC",
		"--output", "csv", "--verbose", path)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"interval", "link", "direction", "current", "peak"}, records[0])
	assert.Equal(t, []string{"20190308:1200", "10.0.0.1", "IN", "1", "1"}, records[1])
}

func TestRootCommandOutputFileWithSummary(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tracesbc_sip_1552046400")
	require.NoError(t, os.WriteFile(path, []byte(trace), 0o644))
	report := filepath.Join(dir, "report.txt")

	_, err := execute(t, "--log-file", filepath.Join(dir, "app.log"), "--verbose",
		"--summary", "--output-file", report, path)
	require.NoError(t, err)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Peak sessions")
	assert.Contains(t, string(data), "SIP Session Summary Report")
	assert.Contains(t, string(data), "Peak Sessions: 1 at 20190308:1200")
}

func TestRootCommandNoFiles(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	_, err := execute(t, "--log-file", filepath.Join(dir, "app.log"),
		"--source", filepath.Join(dir, "tracesbc_sip_*"))
	assert.ErrorIs(t, err, source.ErrNoFiles)
}

func TestRootCommandInvalidOutput(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	_, err := execute(t, "--log-file", filepath.Join(dir, "app.log"), "--verbose",
		"--output", "xml", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
