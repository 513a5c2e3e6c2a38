package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestErrorLogger_WritesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	l := NewErrorLogger(path, 1, 2)
	defer l.Close()

	err := l.Write(ErrorEntry{
		Kind:      "HandlerFailure",
		Op:        "execute",
		Detail:    "command=weather",
		Message:   "!w oulu",
		Cause:     errors.New("weather returned HTTP 502 Bad Gateway"),
		RequestID: "req-1",
		Nick:      "bob",
		Channel:   "#kukisti",
		Command:   "weather",
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	line := string(data)
	if strings.Count(line, "\n") != 1 {
		t.Errorf("entry spans more than one line:\n%s", line)
	}
	for _, want := range []string{
		"kind=HandlerFailure",
		"op=execute",
		`detail="command=weather"`,
		"command=weather",
		"nick=bob",
		"channel=#kukisti",
		"request_id=req-1",
		`msg="!w oulu"`,
		`cause="weather returned HTTP 502 Bad Gateway"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("entry missing %q:\n%s", want, line)
		}
	}
}

func TestErrorEntry_OmitsEmptyFields(t *testing.T) {
	got := ErrorEntry{Kind: "Transport", Op: "read"}.line(time.Time{})
	if strings.Contains(got, "nick=") || strings.Contains(got, "cause=") {
		t.Errorf("line() = %q, want empty fields left out", got)
	}
	if s := (ErrorEntry{Kind: "HandlerFailure", Command: "crypto", Nick: "amy", Channel: "#c", RequestID: "r"}).Summary(); s != "HandlerFailure crypto from amy in #c [r]" {
		t.Errorf("Summary() = %q", s)
	}
}

func TestErrorLogger_KeepsMaxFiles(t *testing.T) {
	tests := []struct {
		name     string
		maxFiles int
		writes   int
		want     int
	}{
		{"under the limit", 3, 3, 2},
		{"pruned to limit", 2, 6, 2},
		{"single file", 1, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "error.log")
			l := NewErrorLogger(path, 1, tt.maxFiles)
			defer l.Close()
			l.maxSize = 10

			// every entry is longer than maxSize, so each write after the
			// first rotates
			for i := 0; i < tt.writes; i++ {
				if err := l.Write(ErrorEntry{Kind: "Transport", Op: "write"}); err != nil {
					t.Fatalf("Write() #%d error = %v", i, err)
				}
			}

			rotated, err := l.Rotated()
			if err != nil {
				t.Fatal(err)
			}
			if len(rotated) != tt.want {
				t.Errorf("rotated files = %d (%v), want %d", len(rotated), rotated, tt.want)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("current log missing: %v", err)
			}
		})
	}
}

func TestErrorLogger_ReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	l := NewErrorLogger(path, 1, 2)

	for i := 0; i < 2; i++ {
		if err := l.Write(ErrorEntry{Kind: "Config"}); err != nil {
			t.Fatal(err)
		}
		if err := l.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "kind=Config"); n != 2 {
		t.Errorf("entries = %d, want 2 appended across Close", n)
	}
}

func TestNewErrorLogger_Defaults(t *testing.T) {
	l := NewErrorLogger("x.log", 0, -1)
	if l.maxSize != DefaultMaxLogSizeMB<<20 {
		t.Errorf("maxSize = %d, want default", l.maxSize)
	}
	if l.maxFiles != DefaultMaxLogFiles {
		t.Errorf("maxFiles = %d, want %d", l.maxFiles, DefaultMaxLogFiles)
	}
}
