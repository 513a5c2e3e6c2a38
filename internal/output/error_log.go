package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxLogSizeMB is the size of the error log file that triggers rotation
	DefaultMaxLogSizeMB = 10
	// DefaultMaxLogFiles is the number of rotated log files to keep
	DefaultMaxLogFiles = 5
)

// ErrorEntry is one absorbed failure. Kind, Op and Detail mirror the bot's
// typed errors; Nick, Channel and Command are set for command invocations.
type ErrorEntry struct {
	Kind      string
	Op        string
	Detail    string
	Message   string
	Cause     error
	RequestID string
	Nick      string
	Channel   string
	Command   string
}

// Summary is the one-line terminal form of the entry
func (e ErrorEntry) Summary() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.Command != "" {
		fmt.Fprintf(&b, " %s", e.Command)
	}
	if e.Nick != "" {
		fmt.Fprintf(&b, " from %s", e.Nick)
	}
	if e.Channel != "" {
		fmt.Fprintf(&b, " in %s", e.Channel)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " - %v", e.Cause)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [%s]", e.RequestID)
	}
	return b.String()
}

// line renders the entry as a single key=value record
func (e ErrorEntry) line(at time.Time) string {
	var b strings.Builder
	b.WriteString(at.UTC().Format(time.RFC3339))
	field := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		if strings.ContainsAny(value, " \"=\t") || !strconv.CanBackquote(value) {
			b.WriteString(strconv.Quote(value))
		} else {
			b.WriteString(value)
		}
	}
	field("kind", e.Kind)
	field("op", e.Op)
	field("detail", e.Detail)
	field("command", e.Command)
	field("nick", e.Nick)
	field("channel", e.Channel)
	field("request_id", e.RequestID)
	field("msg", e.Message)
	if e.Cause != nil {
		field("cause", e.Cause.Error())
	}
	b.WriteByte('\n')
	return b.String()
}

// ErrorLogger appends entries to a file. When a write would push the file
// past maxSize it is renamed with a timestamp suffix and only the newest
// maxFiles renamed files are kept.
type ErrorLogger struct {
	path     string
	maxSize  int64
	maxFiles int

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewErrorLogger creates a logger for path. Non-positive limits fall back to
// the defaults.
func NewErrorLogger(path string, maxSizeMB, maxFiles int) *ErrorLogger {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxLogSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxLogFiles
	}
	return &ErrorLogger{
		path:     path,
		maxSize:  int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}
}

// Write appends entry to the log
func (l *ErrorLogger) Write(entry ErrorEntry) error {
	line := entry.line(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.open(); err != nil {
		return err
	}
	if l.size > 0 && l.size+int64(len(line)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return err
		}
		if err := l.open(); err != nil {
			return err
		}
	}

	n, err := l.f.WriteString(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}

// Close closes the current file. A later Write reopens it.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *ErrorLogger) open() error {
	if l.f != nil {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat error log: %w", err)
	}
	l.f, l.size = f, info.Size()
	return nil
}

func (l *ErrorLogger) rotate() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close error log: %w", err)
	}
	l.f, l.size = nil, 0

	if err := os.Rename(l.path, l.rotatedName()); err != nil {
		return fmt.Errorf("rotate error log: %w", err)
	}
	return l.prune()
}

// rotatedName returns a free name that sorts after every earlier rotation
func (l *ErrorLogger) rotatedName() string {
	base := l.path + "." + time.Now().UTC().Format("20060102-150405.000000000")
	name := base
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}
}

// prune removes rotated files beyond maxFiles, oldest first
func (l *ErrorLogger) prune() error {
	rotated, err := l.Rotated()
	if err != nil {
		return err
	}
	for len(rotated) > l.maxFiles {
		if err := os.Remove(rotated[0]); err != nil {
			return fmt.Errorf("remove old error log: %w", err)
		}
		rotated = rotated[1:]
	}
	return nil
}

// Rotated lists the rotated files, oldest first
func (l *ErrorLogger) Rotated() ([]string, error) {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// EnsureLogDirectory creates the directory of logPath
func EnsureLogDirectory(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}
