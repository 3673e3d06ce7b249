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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// rotatingWriter appends to a single active log file, rotating it out to a
// level-tagged, numbered sibling once it grows past maxLogSize. Tagging the
// rotated name with the run's minimum level (e.g. "cp.debug.0.log") lets an
// operator tell which verbosity floor a given rotated file was captured at
// without opening it; the level never filters what gets written here, that
// already happened in Logger.Log before bytes reach this writer.
type rotatingWriter struct {
	filePath      string
	level         Level
	file          *os.File
	l             sync.RWMutex
	currentSuffix int32
	currentSize   uint64
	maxLogSize    uint64
	rotations     int32
}

// RotationCount reports how many times this writer has rotated out a full
// log file since it was opened. runLogger reports it at Close so an
// operator can tell, from the final summary line, whether a run's log was
// ever large enough to roll over without having to list the log directory.
func (w *rotatingWriter) RotationCount() int32 {
	return atomic.LoadInt32(&w.rotations)
}

// NewRotatingWriter opens filePath for append, rotating it to
// <filePath without its ".log" suffix>.<level>.N.log (e.g. "cp.log" ->
// "cp.debug.0.log") once it grows past size bytes.
func NewRotatingWriter(filePath string, size uint64, level Level) (io.WriteCloser, error) {
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, logFilePerm())
	if err != nil {
		return nil, err
	}

	return &rotatingWriter{
		file:       file,
		filePath:   filePath,
		level:      level,
		maxLogSize: size,
	}, nil
}

// rotate() takes in a context in form of an integer, and rotates the log
// only if the context matches the current suffix. It must be called with
// the RLock held and returns with the RLock held.
func (w *rotatingWriter) rotate(suffix int32) error {
	w.l.RUnlock()
	defer w.l.RLock()

	w.l.Lock()
	defer w.l.Unlock()

	if atomic.LoadInt32(&w.currentSuffix) > suffix {
		// already rotated by another writer
		return nil
	}

	if err := w.file.Close(); err != nil {
		return err
	}

	rotatedName := strings.TrimSuffix(w.filePath, ".log") +
		fmt.Sprintf(".%s.%d.log", strings.ToLower(w.level.String()), w.currentSuffix)
	if err := os.Rename(w.filePath, rotatedName); err != nil {
		return err
	}

	atomic.AddInt32(&w.currentSuffix, 1)
	atomic.AddInt32(&w.rotations, 1)
	atomic.StoreUint64(&w.currentSize, 0)

	file, err := os.OpenFile(w.filePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, logFilePerm())
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

func (w *rotatingWriter) Close() error {
	return w.file.Close()
}

func (w *rotatingWriter) Write(p []byte) (n int, err error) {
	w.l.RLock()
	defer w.l.RUnlock()

	currSuffix := atomic.LoadInt32(&w.currentSuffix)
	if atomic.AddUint64(&w.currentSize, uint64(len(p))) <= w.maxLogSize {
		return w.file.Write(p)
	}

	atomic.AddUint64(&w.currentSize, -uint64(len(p)))

	if err := w.rotate(currSuffix); err != nil {
		return 0, err
	}

	atomic.AddUint64(&w.currentSize, uint64(len(p)))
	return w.file.Write(p)
}
