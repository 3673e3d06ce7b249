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

package mtlog

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"time"
)

const maxLogSize = 100 * 1024 * 1024

// Logger is the interface every command in cmd/ logs through.
type Logger interface {
	ShouldLog(level Level) bool
	Log(level Level, msg string)
	Close()
}

// runLogger writes one run's log to a rotating file under logDir, named
// after the command that created it (e.g. "cp", "rm"). It is the local,
// single-process analogue of a per-job logger: there is no remote job ID
// here, just a run name and a start time.
type runLogger struct {
	minimumLevelToLog Level
	file              io.WriteCloser
	logger            *log.Logger
}

// NewRunLogger opens (or creates) logDir/name.log, rotating it once it
// exceeds maxLogSize. minLevel == LogNone disables logging entirely and
// NewRunLogger returns a no-op logger that never touches the filesystem.
func NewRunLogger(name string, minLevel Level, logDir string) (Logger, error) {
	if minLevel == LogNone {
		return &runLogger{minimumLevelToLog: LogNone}, nil
	}

	file, err := NewRotatingWriter(filepath.Join(logDir, name+".log"), maxLogSize, minLevel)
	if err != nil {
		return nil, err
	}

	rl := &runLogger{
		minimumLevelToLog: minLevel,
		file:              file,
		logger:            log.New(file, "", log.LstdFlags|log.LUTC),
	}
	rl.logger.Println("started", time.Now().UTC().Format("2 Jan 2006 15:04:05"))
	rl.logger.Println("os", runtime.GOOS, runtime.GOARCH)
	return rl, nil
}

func (rl *runLogger) ShouldLog(level Level) bool {
	if level == LogNone {
		return false
	}
	return level <= rl.minimumLevelToLog
}

func (rl *runLogger) Log(level Level, msg string) {
	if !rl.ShouldLog(level) {
		return
	}
	rl.logger.Println(fmt.Sprintf("%s: %s", level, msg))
}

// rotationCounter is implemented by rotatingWriter; runLogger type-asserts
// against it rather than widening Logger's own interface, since a no-op
// logger (minLevel == LogNone) never has a rotatingWriter to ask.
type rotationCounter interface {
	RotationCount() int32
}

func (rl *runLogger) Close() {
	if rl.file == nil {
		return
	}
	if rc, ok := rl.file.(rotationCounter); ok {
		rl.logger.Println("closing log", "rotations", rc.RotationCount())
	} else {
		rl.logger.Println("closing log")
	}
	_ = rl.file.Close()
}
