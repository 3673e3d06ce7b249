package cmd

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/scottd-labs/mtfs/traverse"
)

var rmCmd = &cobra.Command{
	Use:   "rm PATH...",
	Short: "recursively delete one or more file trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failures int64
		for _, path := range args {
			if err := removeOne(path, &failures); err != nil {
				return err
			}
		}
		if failures > 0 {
			return fmt.Errorf("mtrm: %d item(s) failed to delete", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

// removeOne walks path with FILE_TASKS off: deleting a file is cheap enough
// that FileMethod unlinks each file inline, within the parent directory's
// DIR_ENTER task, rather than paying for a separate worker-pool task per file. DirExit then
// removes the now-empty directory itself. Failures are local-repair: they
// increment a counter and continue, matching the policy of the other
// commands in this suite.
func removeOne(root string, failures *int64) error {
	cb := traverse.Callbacks[struct{}]{
		DirEnter: func(_ any, path string, _ os.FileInfo, _ any) (bool, any) {
			if excludeFltr.Matches(path) {
				return false, nil
			}
			return true, nil
		},
		DirExit: func(_ any, path string, _ os.FileInfo, _ any, _ []traverse.Entry[struct{}], _ int) struct{} {
			if err := os.Remove(path); err != nil {
				atomic.AddInt64(failures, 1)
				recordRmFailure(path, err)
			}
			return struct{}{}
		},
		FileMethod: func(_ any, path string, _ os.FileInfo, _ any) struct{} {
			if excludeFltr.Matches(path) {
				return struct{}{}
			}
			if err := os.Remove(path); err != nil {
				atomic.AddInt64(failures, 1)
				recordRmFailure(path, err)
			}
			return struct{}{}
		},
		ErrorMethod: func(_ any, path string, _ os.FileInfo, _ any) struct{} {
			atomic.AddInt64(failures, 1)
			recordRmFailure(path, fmt.Errorf("could not read directory"))
			return struct{}{}
		},
	}

	_, err := traverse.Traverse(workers, traverse.Config{QueueMax: queueMax}, root, cb, nil)
	return err
}

func recordRmFailure(path string, err error) {
	mtlogLifecycleWarn(fmt.Sprintf("%s: %v", path, err))
}
