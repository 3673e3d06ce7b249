package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scottd-labs/mtfs/internal/fsstat"
	"github.com/scottd-labs/mtfs/traverse"
)

var duCmd = &cobra.Command{
	Use:   "du PATH...",
	Short: "summarize disk usage of one or more file trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			total, err := diskUsage(path)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %s\n", humanize.Bytes(uint64(total)), path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(duCmd)
}

// duUserArg is the "global state becomes user_arg" instance of this suite:
// a dedup set shared by every task in the traversal so a hardlinked file
// counted once by whichever task reaches its inode first is never counted
// again by a sibling hardlink.
type duUserArg struct {
	seenInode sync.Map // fsstat.Identity -> struct{}
}

// diskUsage runs the classic "du" fold as the T = int64 instantiation of
// traverse.Callbacks: FileMethod returns a leaf's own size, DirExit sums
// its children's sizes plus its own directory-entry size, and that sum
// becomes this directory's contribution to its own parent - recursing all
// the way to the root.
func diskUsage(root string) (int64, error) {
	ua := &duUserArg{}

	cb := traverse.Callbacks[int64]{
		DirEnter: func(_ any, path string, _ os.FileInfo, _ any) (bool, any) {
			return !excludeFltr.Matches(path), nil
		},
		DirExit: func(_ any, path string, st os.FileInfo, _ any, entries []traverse.Entry[int64], n int) int64 {
			total := fileSize(ua, path, st)
			for i := 0; i < n; i++ {
				if entries[i].Data.Present {
					total += entries[i].Data.Value
				}
			}
			return total
		},
		FileMethod: func(_ any, path string, st os.FileInfo, _ any) int64 {
			if excludeFltr.Matches(path) {
				return 0
			}
			return fileSize(ua, path, st)
		},
		ErrorMethod: func(_ any, path string, _ os.FileInfo, _ any) int64 {
			recordRmFailure(path, fmt.Errorf("could not read"))
			return 0
		},
	}

	return traverse.Traverse(workers, traverse.Config{QueueMax: queueMax}, root, cb, ua)
}

// fileSize returns st's apparent size, counting a hardlinked file only the
// first time its (dev, ino) is seen across this whole run.
func fileSize(ua *duUserArg, path string, st os.FileInfo) int64 {
	if id, nlink, ok := fsstat.Inspect(st); ok && nlink > 1 {
		if _, already := ua.seenInode.LoadOrStore(id, struct{}{}); already {
			return 0
		}
	}
	return st.Size()
}
