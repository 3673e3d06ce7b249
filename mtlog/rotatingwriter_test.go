// Copyright © 2023 Microsoft <wastore@microsoft.com>
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

package mtlog

import (
	"os"
	"path"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertDirContents(a *assert.Assertions, dir string, want ...string) {
	entries, err := os.ReadDir(dir)
	a.NoError(err)
	got := make(map[string]bool, len(entries))
	for _, e := range entries {
		got[e.Name()] = true
	}
	a.Len(entries, len(want))
	for _, name := range want {
		a.True(got[name], "expected %s among %v", name, entries)
	}
}

func TestRotatingWriterTagsRotatedFilesWithLevel(t *testing.T) {
	a := assert.New(t)
	data := "This string is one hundred bytes. Also has some junk to make actually make it one hundred bytes. Bye"

	tmpDir, err := os.MkdirTemp("", "")
	a.NoError(err)
	defer os.RemoveAll(tmpDir)

	logFile := path.Join(tmpDir, "cp")
	w, err := NewRotatingWriter(logFile+".log", 100, LogDebug)
	a.NoError(err)

	// under the rotation threshold: a single, untagged active file.
	w.Write([]byte(data[:10]))
	assertDirContents(a, tmpDir, "cp.log")

	w.Write([]byte(data[:90]))
	assertDirContents(a, tmpDir, "cp.log")

	// crossing the threshold rotates the old contents out under a name
	// tagged with this writer's level and a rotation counter.
	n, err := w.Write([]byte(data[:10]))
	a.Equal(10, n)
	a.NoError(err)
	assertDirContents(a, tmpDir, "cp.log", "cp.debug.0.log")

	w.Write([]byte(data[:80]))

	// concurrent writers racing past the threshold must still only rotate once.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Write([]byte(data[:10]))
			n, err := w.Write([]byte(data[:10]))
			a.Equal(10, n)
			a.NoError(err)
		}()
	}
	wg.Wait()

	assertDirContents(a, tmpDir, "cp.log", "cp.debug.0.log", "cp.debug.1.log")

	a.NoError(w.Close())
	assertDirContents(a, tmpDir, "cp.log", "cp.debug.0.log", "cp.debug.1.log")

	rc, ok := w.(rotationCounter)
	a.True(ok)
	a.EqualValues(2, rc.RotationCount())
}

func TestRotatingWriterLevelTagFollowsTheWriterNotTheContent(t *testing.T) {
	a := assert.New(t)
	tmpDir, err := os.MkdirTemp("", "")
	a.NoError(err)
	defer os.RemoveAll(tmpDir)

	w, err := NewRotatingWriter(path.Join(tmpDir, "rm.log"), 5, LogError)
	a.NoError(err)
	defer w.Close()

	// a single write past the 5 byte threshold rotates immediately, even
	// though nothing about this particular message is error-level - the
	// tag records the run's configured floor, not a per-message level.
	_, err = w.Write([]byte("123456"))
	a.NoError(err)

	assertDirContents(a, tmpDir, "rm.log", "rm.error.0.log")
}
