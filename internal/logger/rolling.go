package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxLines is the line count after which a log file is rolled.
const DefaultMaxLines = 50000

// now is overridable in tests.
var now = time.Now

// RollingFile is an io.WriteCloser that appends log lines to a file and
// rolls to a new one when the day changes or every MaxLines lines.
//
// Rolled files are named <base>.YYYY_MM_DD, with a -N suffix for
// line-count rolls within the same day.
type RollingFile struct {
	mu        sync.Mutex
	base      string
	maxLines  int
	lineCount int
	today     int
	file      *os.File
	w         *bufio.Writer
}

// NewRollingFile opens base for appending.
func NewRollingFile(base string, maxLines int) (*RollingFile, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	rf := &RollingFile{base: base, maxLines: maxLines, today: now().Day()}
	if err := rf.open(base); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RollingFile) open(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", name, err)
	}
	if rf.file != nil {
		_ = rf.w.Flush()
		_ = rf.file.Close()
	}
	rf.file = f
	rf.w = bufio.NewWriter(f)
	return nil
}

func (rf *RollingFile) datedName(t time.Time) string {
	return fmt.Sprintf("%s.%04d_%02d_%02d", rf.base, t.Year(), int(t.Month()), t.Day())
}

// roll must be called with mu held, before the next line is written.
func (rf *RollingFile) roll() error {
	t := now()
	switch {
	case rf.lineCount > 0 && rf.lineCount%rf.maxLines == 0:
		return rf.open(fmt.Sprintf("%s-%d", rf.datedName(t), rf.lineCount/rf.maxLines))
	case t.Day() != rf.today:
		rf.today = t.Day()
		rf.lineCount = 0
		return rf.open(rf.datedName(t))
	}
	return nil
}

// Write appends p and flushes; each newline in p counts as one line.
func (rf *RollingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return 0, os.ErrClosed
	}
	if err := rf.roll(); err != nil {
		return 0, err
	}
	n, err := rf.w.Write(p)
	if err != nil {
		return n, err
	}
	rf.lineCount += bytes.Count(p, []byte{'\n'})
	return n, rf.w.Flush()
}

// Name returns the path of the file currently written to.
func (rf *RollingFile) Name() string {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return ""
	}
	return rf.file.Name()
}

// Close flushes and closes the current file.
func (rf *RollingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	ferr := rf.w.Flush()
	err := rf.file.Close()
	rf.file = nil
	if ferr != nil {
		return ferr
	}
	return err
}
