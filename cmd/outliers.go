package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scottd-labs/mtfs/traverse"
)

var outlierK float64

var outliersCmd = &cobra.Command{
	Use:   "outliers PATH...",
	Short: "flag files whose size is an outlier relative to their siblings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			data, err := findOutliers(path)
			if err != nil {
				return err
			}
			for _, f := range data.flagged {
				fmt.Println(f)
			}
			fmt.Printf("%d outlier(s) under %s (total %s)\n", len(data.flagged), path, humanize.Bytes(uint64(data.size)))
		}
		return nil
	},
}

func init() {
	outliersCmd.Flags().Float64Var(&outlierK, "k", 3.0, "median-absolute-deviation multiplier beyond which a file is flagged")
	rootCmd.AddCommand(outliersCmd)
}

// outlierData is the payload threaded through entries: a directory's total
// size, folded the same way mtdu does it, alongside the flagged paths
// accumulated from this directory and everything beneath it.
type outlierData struct {
	size    int64
	flagged []string
}

func findOutliers(root string) (outlierData, error) {
	cb := traverse.Callbacks[outlierData]{
		DirEnter: func(_ any, path string, _ os.FileInfo, _ any) (bool, any) {
			return !excludeFltr.Matches(path), nil
		},
		DirExit: func(_ any, path string, st os.FileInfo, _ any, entries []traverse.Entry[outlierData], n int) outlierData {
			return foldDirectory(path, st, entries, n)
		},
		FileMethod: func(_ any, path string, st os.FileInfo, _ any) outlierData {
			if excludeFltr.Matches(path) {
				return outlierData{}
			}
			return outlierData{size: st.Size()}
		},
		ErrorMethod: func(_ any, path string, _ os.FileInfo, _ any) outlierData {
			recordRmFailure(path, fmt.Errorf("could not read"))
			return outlierData{}
		},
	}

	return traverse.Traverse(workers, traverse.Config{QueueMax: queueMax}, root, cb, nil)
}

// foldDirectory is the per-utility aggregation action for mtoutlier: it
// computes a robust cutoff (median + outlierK * 1.4826 * median absolute
// deviation) from the
// sizes of this directory's direct, present file children, flags any child
// whose own size exceeds it, and folds the running flagged list and total
// size up toward the root exactly as DirExit's role is described for mtdu.
// File vs directory children is read off entries[i].IsDir, which the
// engine already stamped from its own lstat - this never lstats a child
// path a second time.
func foldDirectory(dirPath string, st os.FileInfo, entries []traverse.Entry[outlierData], n int) outlierData {
	total := st.Size()
	var flagged []string
	var sizes []float64

	for i := 0; i < n; i++ {
		if !entries[i].Data.Present {
			continue
		}
		d := entries[i].Data.Value
		total += d.size
		flagged = append(flagged, d.flagged...)

		if !entries[i].IsDir {
			sizes = append(sizes, float64(d.size))
		}
	}

	if len(sizes) >= 2 {
		cutoff := medianAbsoluteDeviationCutoff(sizes, outlierK)
		for i := 0; i < n; i++ {
			if entries[i].IsDir || !entries[i].Data.Present {
				continue
			}
			if float64(entries[i].Data.Value.size) > cutoff {
				flagged = append(flagged, filepath.Join(dirPath, entries[i].Name))
			}
		}
	}

	return outlierData{size: total, flagged: flagged}
}

func medianAbsoluteDeviationCutoff(sizes []float64, k float64) float64 {
	med := median(sizes)
	deviations := make([]float64, len(sizes))
	for i, s := range sizes {
		deviations[i] = math.Abs(s - med)
	}
	mad := median(deviations)
	if mad == 0 {
		mad = 1
	}
	// 1.4826 makes MAD a consistent estimator of the standard deviation for
	// normally distributed data.
	return med + k*1.4826*mad
}

func median(values []float64) float64 {
	cp := append([]float64(nil), values...)
	sort.Float64s(cp)
	n := len(cp)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}
