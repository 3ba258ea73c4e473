package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/sszokoly/avaya/internal/data/parser"
	"github.com/sszokoly/avaya/internal/data/scanner"
	"github.com/sszokoly/avaya/internal/util"
)

var filesCmd = &cobra.Command{
	Use:    "files",
	Short:  "List the trace files a run would read",
	Long:   `Expands the --source patterns, applies --timeframe or --last and prints each file with its detected format, embedded timestamp and size.`,
	Hidden: true, // Hidden from help
	RunE:   runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	defer util.CloseLogger()

	patterns := expandPaths(sources)
	if len(patterns) == 0 {
		patterns = []string{scanner.DefaultTracesbcPattern, scanner.DefaultSsyndiPattern}
	}

	files, err := scanner.NewFileScanner(patterns...).Scan()
	if err != nil {
		return err
	}

	tf, err := selectTimeframe()
	if err != nil {
		return err
	}
	loc := util.GetTimeProvider().Location()
	if tf != nil {
		files = scanner.FilterByTime(files, *tf, loc)
	}

	return printFiles(cmd.OutOrStdout(), files)
}

func printFiles(w io.Writer, files []string) error {
	loc := util.GetTimeProvider().Location()
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No trace files found.")
		return err
	}

	for _, path := range files {
		stamp := "-"
		if t, ok := scanner.FileTime(path, loc); ok {
			stamp = t.Format("2006-01-02 15:04:05")
		}
		size := "-"
		if info, err := util.GetFileInfo(path); err == nil {
			size = fmt.Sprintf("%d", info.Size)
		}
		_, err := fmt.Fprintf(w, "%s %s %s %s\n",
			util.PadRight(string(parser.DetectFormat(path)), 9),
			util.PadRight(stamp, 20),
			util.PadLeft(size, 12),
			path)
		if err != nil {
			return err
		}
	}
	return nil
}
