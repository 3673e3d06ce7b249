// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package cmd wires the four mtfs command-line tools (cp, rm, du,
// outliers) onto the shared traversal engine.
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/scottd-labs/mtfs/internal/exclude"
	"github.com/scottd-labs/mtfs/mtlog"
)

var (
	workers     int
	queueMax    int
	excludeRaw  []string
	logLevel    string
	logDir      string
	excludeFltr *exclude.Filter
	runLog      mtlog.Logger
)

var rootCmd = &cobra.Command{
	Version: mtfsVersion,
	Use:     "mtfs",
	Short:   "mtfs is a suite of parallel file-tree utilities",
	Long: `mtfs is a suite of UNIX file-tree utilities (copy/sync, recursive
delete, disk-usage summary, outlier detection) sharing one multi-threaded
path traversal engine tuned for parallel filesystems where readdir/stat/
open/close pipelines are client-side I/O bound.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		fc, err := loadFileConfig()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("workers") && fc.Workers > 0 {
			workers = fc.Workers
		}
		if !cmd.Flags().Changed("queue-max") && fc.QueueMax > 0 {
			queueMax = fc.QueueMax
		}
		if !cmd.Flags().Changed("exclude") && len(fc.Exclude) > 0 {
			excludeRaw = fc.Exclude
		}
		if !cmd.Flags().Changed("log-level") && fc.LogLevel != "" {
			logLevel = fc.LogLevel
		}
		if workers <= 0 {
			workers = runtime.NumCPU()
		}

		f, err := exclude.New(excludeRaw)
		if err != nil {
			return err
		}
		excludeFltr = f

		dir := logDir
		if dir == "" {
			dir = os.TempDir()
		}
		rl, err := mtlog.NewRunLogger(cmd.Name(), parseLogLevel(logLevel), dir)
		if err != nil {
			return err
		}
		runLog = rl
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if runLog != nil {
			runLog.Close()
		}
	},
}

func lifecycleHooks() *mtlog.UIHooks {
	return mtlog.Lifecycle()
}

func parseLogLevel(s string) mtlog.Level {
	switch s {
	case "debug":
		return mtlog.LogDebug
	case "info":
		return mtlog.LogInfo
	case "warning", "warn":
		return mtlog.LogWarning
	case "error":
		return mtlog.LogError
	default:
		return mtlog.LogNone
	}
}

// Execute runs the selected subcommand, printing any returned error to
// stderr and exiting non-zero.
func Execute() {
	mtlog.SetLifecycle(&mtlog.UIHooks{
		Info:  func(msg string) { fmt.Println(msg) },
		Warn:  func(msg string) { fmt.Fprintln(os.Stderr, "warning:", msg) },
		Error: func(msg string) { fmt.Fprintln(os.Stderr, "error:", msg) },
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "number of traversal worker goroutines (default: number of CPUs)")
	rootCmd.PersistentFlags().IntVar(&queueMax, "queue-max", 0, "bound the traversal task queue (0 = unbounded)")
	rootCmd.PersistentFlags().StringArrayVar(&excludeRaw, "exclude", nil, "glob pattern to exclude, may be repeated")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "log verbosity: none, error, warning, info, debug")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for the run log (default: system temp dir)")
}
