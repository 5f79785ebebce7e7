// Output handling for the logger. Every entry is written to the console and,
// once UseConfigFile has been called, appended to the current log file.

package logger

import (
	"io"
	"os"
	"sync"
)

type logWriter struct {
	mu      sync.Mutex
	out     io.Writer
	file    *os.File
	fails   int
	maxFail int
}

// Write sends p to the console and to the log file (if one is open). A log
// file that keeps failing is dropped after maxFail attempts.
func (lw *logWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.file != nil {
		if _, err := lw.file.Write(p); err != nil {
			lw.fails++
			if lw.fails > lw.maxFail {
				lw.file.Close()
				lw.file = nil
			}
		}
	}
	return lw.out.Write(p)
}

func (lw *logWriter) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.file != nil {
		return lw.file.Sync()
	}
	return nil
}

func (lw *logWriter) setFile(f *os.File) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.file != nil {
		lw.file.Close()
	}
	lw.file = f
	lw.fails = 0
}

func (lw *logWriter) setOutput(out io.Writer) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.out = out
}

// Create a new log writer.
func newLogWriter(out io.Writer) *logWriter {
	return &logWriter{out: out, maxFail: 20}
}
