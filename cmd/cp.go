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

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scottd-labs/mtfs/internal/fsstat"
	"github.com/scottd-labs/mtfs/mtlog"
	"github.com/scottd-labs/mtfs/traverse"
)

var preserveHardlinks bool

var cpCmd = &cobra.Command{
	Use:   "cp SOURCE... DEST",
	Short: "recursively copy or sync one or more file trees into DEST",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := args[:len(args)-1]
		dest := args[len(args)-1]
		return runCopy(sources, dest)
	},
}

func init() {
	cpCmd.Flags().BoolVar(&preserveHardlinks, "preserve-hardlinks", true, "reproduce hardlinked regular files as hardlinks at the destination")
	rootCmd.AddCommand(cpCmd)
}

// cpState is the per-invocation shared state threaded through every source's
// traversal as its user_arg: a destination-side inode map so regular files
// sharing a (dev, ino) at the source are hardlinked, not duplicated, at the
// destination, plus a shared failure counter.
type cpState struct {
	destByInode sync.Map // fsstat.Identity -> destination path
	failures    int64
}

func runCopy(sources []string, destRoot string) error {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return errors.Wrapf(err, "creating destination %s", destRoot)
	}

	state := &cpState{}

	// Each source tree is an independent traversal; errgroup fans them out
	// concurrently and surfaces the first fatal error without needing any
	// traversal-side cancellation (per-file and per-directory errors are
	// always handled locally, by ErrorMethod, and never abort a sibling
	// source's copy).
	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(func() error {
			return copyOneSource(src, destRoot, state)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n := atomic.LoadInt64(&state.failures); n > 0 {
		return fmt.Errorf("mtcp: %d item(s) failed to copy", n)
	}
	return nil
}

func copyOneSource(src, destRoot string, state *cpState) error {
	srcRoot := filepath.Clean(src)
	dstRoot := filepath.Join(destRoot, filepath.Base(srcRoot))

	cb := traverse.Callbacks[struct{}]{
		DirEnter: func(_ any, path string, st os.FileInfo, parentCont any) (bool, any) {
			if excludeFltr.Matches(path) {
				return false, nil
			}
			dst := childDest(parentCont, srcRoot, dstRoot, path)
			if err := os.MkdirAll(dst, 0o755); err != nil {
				logError(state, path, err)
				return false, nil
			}
			return true, dst
		},
		DirExit: func(_ any, path string, st os.FileInfo, continuation any, _ []traverse.Entry[struct{}], _ int) struct{} {
			dst, _ := continuation.(string)
			if dst != "" {
				_ = os.Chtimes(dst, st.ModTime(), st.ModTime())
			}
			return struct{}{}
		},
		FileMethod: func(_ any, path string, st os.FileInfo, parentCont any) struct{} {
			if excludeFltr.Matches(path) {
				return struct{}{}
			}
			dstDir, _ := parentCont.(string)
			dstFile := filepath.Join(dstDir, filepath.Base(path))
			if err := copyFile(state, path, dstFile, st); err != nil {
				logError(state, path, err)
			}
			return struct{}{}
		},
		ErrorMethod: func(_ any, path string, _ os.FileInfo, _ any) struct{} {
			logError(state, path, errors.New("read error"))
			return struct{}{}
		},
	}

	_, err := traverse.Traverse(workers, traverse.Config{FileTasks: true, QueueMax: queueMax}, srcRoot, cb, nil)
	return err
}

func childDest(parentCont any, srcRoot, dstRoot, path string) string {
	if parentCont == nil {
		if path == srcRoot {
			return dstRoot
		}
	}
	parentDst, _ := parentCont.(string)
	if parentDst == "" {
		parentDst = dstRoot
	}
	return filepath.Join(parentDst, filepath.Base(path))
}

func logError(state *cpState, path string, err error) {
	atomic.AddInt64(&state.failures, 1)
	if runLog != nil {
		runLog.Log(mtlog.LogError, fmt.Sprintf("%s: %v", path, err))
	}
	mtlogLifecycleWarn(fmt.Sprintf("%s: %v", path, err))
}

// copyFile reproduces a hardlinked source file as a hardlink at the
// destination (tracked by (dev, ino) across the whole run via state), or
// otherwise copies its content through a uuid-suffixed temp file that is
// renamed into place only once fully written, so a reader never observes a
// partially-written destination file.
func copyFile(state *cpState, src, dst string, st os.FileInfo) error {
	if preserveHardlinks {
		if id, nlink, ok := fsstat.Inspect(st); ok && nlink > 1 {
			if existing, found := state.destByInode.LoadOrStore(id, dst); found {
				if err := os.Link(existing.(string), dst); err == nil {
					return nil
				}
				// fall through to a regular copy if Link failed (e.g. cross-device)
			}
		}
	}

	tmp := dst + "." + uuid.New().String() + ".tmp"
	if err := copyFileContent(src, tmp, st); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

func copyFileContent(src, tmp string, st os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "creating %s", tmp)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying %s", src)
	}
	return out.Close()
}

func mtlogLifecycleWarn(msg string) {
	if h := lifecycleHooks(); h != nil && h.Warn != nil {
		h.Warn(msg)
	}
}
