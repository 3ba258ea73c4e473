package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/sszokoly/avaya/internal/application/monitor"
	"github.com/sszokoly/avaya/internal/data/scanner"
	"github.com/sszokoly/avaya/internal/presentation/formatter"
	"github.com/sszokoly/avaya/internal/presentation/resolver"
	"github.com/sszokoly/avaya/internal/util"
)

var (
	// Logging related
	debug   bool
	logFile string

	// Input selection
	sources     []string
	traceFormat string
	timeframe   string
	lastHours   int
	fromStart   bool

	// Counting
	interval     string
	linkFilter   string
	maxDialogs   int
	maxDialogAge time.Duration
	pollInterval time.Duration

	// Output related
	outputFormat string
	outputFile   string
	active       bool
	verbose      bool
	labelsFile   string
	summary      bool
	timezone     string

	rootCmd = &cobra.Command{
		Use:   "sipsessions [flags] [FILE...]",
		Short: "Concurrent SIP session counter for SBC and call server traces",
		Long: `sipsessions reads SIP signaling traces and reports the number of concurrent
sessions crossing each signaling link, per interval.

Without FILE arguments it follows the newest trace file matching each --source
pattern across rotations. With FILE arguments, --timeframe or --last it reads
the selected files once and exits.

Examples:
  sipsessions                                          # Follow the default trace locations
  sipsessions --interval TENSEC --active               # Live sessions every 10 seconds
  sipsessions -i HOUR tracesbc_sip_1552*               # Hourly peaks from the given files
  sipsessions --timeframe 20190308:12-20190308:18      # Historical files from an afternoon
  sipsessions --last 6 --output csv --output-file s.csv
  sipsessions --filter "10.0.0.1|10.0.0.2" --verbose   # Only two links, by address`,
		Args:         cobra.ArbitraryArgs,
		RunE:         runMonitor,
		SilenceUsage: true,
	}
)

const defaultLogFile = "~/.sipsessions/logs/app.log"

func init() {
	// Input selection
	rootCmd.PersistentFlags().StringArrayVarP(&sources, "source", "s", nil,
		"Trace file glob pattern, repeat for several sources (default: tracesbc and SSYNDI locations)")
	rootCmd.PersistentFlags().StringVar(&timeframe, "timeframe", "",
		"Read files in range yyyymmdd[:HH[MM[SS]]][-yyyymmdd[:HH[MM[SS]]]]")
	rootCmd.PersistentFlags().IntVar(&lastHours, "last", 0,
		"Read files of the last N hours")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "Local",
		"Timezone of the trace timestamps (e.g., America/New_York, UTC)")
	rootCmd.Flags().StringVar(&traceFormat, "format", "",
		"Trace format (tracesbc, ssyndi, ecs), detected from the file name when empty")
	rootCmd.Flags().BoolVar(&fromStart, "from-start", false,
		"Follow mode: read the current file from its beginning")

	// Counting
	rootCmd.Flags().StringVarP(&interval, "interval", "i", "MIN",
		"Reporting interval (SEC, TENSEC, MIN, TENMIN, HOUR, DAY)")
	rootCmd.Flags().StringVarP(&linkFilter, "filter", "f", "",
		"Count only these local addresses, separated by |")
	rootCmd.Flags().IntVar(&maxDialogs, "max-dialogs", 0,
		"Maximum tracked dialogs per source (0 = default)")
	rootCmd.Flags().DurationVar(&maxDialogAge, "max-dialog-age", 0,
		"Evict dialogs idle for longer than this in log time (0 = never)")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0,
		"Follow mode poll interval (0 = default)")

	// Output configuration
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "table",
		"Output format (table, json, csv)")
	rootCmd.Flags().StringVar(&outputFile, "output-file", "",
		"Write the report to a file instead of stdout")
	rootCmd.Flags().BoolVarP(&active, "active", "a", false,
		"Show sessions active at the end of each interval instead of the peak")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Show link addresses instead of interface labels")
	rootCmd.Flags().StringVar(&labelsFile, "labels", "",
		`JSON file of link labels, {"ip": "label"}`)
	rootCmd.Flags().BoolVar(&summary, "summary", false,
		"Print a summary report at the end of the run")

	// System and debugging
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile,
		"Log file path")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	defer util.CloseLogger()

	config, err := buildConfig(args)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(expandPath(outputFile))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	out, err := buildFormatter(w)
	if err != nil {
		return err
	}

	m, err := monitor.New(config, out)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := m.Run(ctx)
	return errors.Join(runErr, out.Close())
}

// setup initializes logging and the timezone shared by all commands.
func setup() error {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}

	path := expandPath(logFile)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	util.InitLogger(logLevel, path, debug)
	util.SetRunID(uuid.NewString())

	if err := util.InitializeTimeProvider(timezone); err != nil {
		return err
	}
	return nil
}

// buildConfig validates the flags and turns them into a monitor config.
func buildConfig(args []string) (*monitor.Config, error) {
	if timeframe != "" && lastHours != 0 {
		return nil, errors.New("--timeframe and --last are mutually exclusive")
	}
	if lastHours < 0 {
		return nil, errors.New("--last must be positive")
	}
	if len(args) > 0 && (timeframe != "" || lastHours != 0) {
		return nil, errors.New("--timeframe and --last select files from --source patterns, not FILE arguments")
	}

	config := &monitor.Config{
		Sources:      expandPaths(sources),
		Files:        expandPaths(args),
		Format:       traceFormat,
		Interval:     interval,
		Links:        parseFilter(linkFilter),
		MaxDialogs:   maxDialogs,
		MaxDialogAge: maxDialogAge,
		PollInterval: pollInterval,
		FromStart:    fromStart,
	}

	tf, err := selectTimeframe()
	if err != nil {
		return nil, err
	}
	config.Timeframe = tf

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func selectTimeframe() (*scanner.Timeframe, error) {
	tp := util.GetTimeProvider()
	switch {
	case timeframe != "":
		tf, err := scanner.ParseTimeframe(timeframe, tp.Location())
		if err != nil {
			return nil, err
		}
		return &tf, nil
	case lastHours > 0:
		tf := scanner.Last(lastHours, tp.Now())
		return &tf, nil
	}
	return nil, nil
}

func buildFormatter(w io.Writer) (formatter.Formatter, error) {
	var labels formatter.LabelResolver
	if !verbose {
		r := resolver.New()
		if err := r.LoadInterfaces(); err != nil {
			util.LogWarn("cannot read interface addresses", util.Field{Key: "error", Value: err.Error()})
		}
		if labelsFile != "" {
			if err := r.LoadFile(expandPath(labelsFile)); err != nil {
				return nil, err
			}
		}
		labels = r
	}

	out, err := formatter.New(outputFormat, w, active, labels)
	if err != nil {
		return nil, err
	}
	if summary {
		return formatter.Multi{out, formatter.NewSummary(w, labels)}, nil
	}
	return out, nil
}

// parseFilter splits a "|" separated address list, ignoring blanks.
func parseFilter(s string) []string {
	var links []string
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			links = append(links, part)
		}
	}
	return links
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func expandPaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = expandPath(p)
	}
	return out
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
