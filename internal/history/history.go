// Package history maintains the append-only event log of an image package.
//
// Each event is one line, "<timestamp> <message>", with a microsecond
// ISO-8601 timestamp in the configured zone. Lines are never rewritten.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// FileName is the package file holding the log.
const FileName = "history.txt"

// Layout is the timestamp format written for every event.
const Layout = "2006-01-02T15:04:05.000000-07:00"

// Event is one parsed log line.
type Event struct {
	Time    time.Time `json:"time" yaml:"time"`
	Message string    `json:"message" yaml:"message"`
}

func (e Event) String() string {
	return e.Time.Format(Layout) + " " + e.Message
}

// Log appends events to a history file.
type Log struct {
	path string
	loc  *time.Location
	now  func() time.Time
}

// Option customizes a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Open returns a log backed by path. The file is created on first Append.
func Open(path string, loc *time.Location, opts ...Option) *Log {
	if loc == nil {
		loc = time.Local
	}
	l := &Log{path: path, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Log) Path() string { return l.path }

// Append writes one event and syncs the file. Newlines inside msg are folded
// to spaces so every event stays on its own line.
func (l *Log) Append(msg string) (Event, error) {
	msg = strings.Join(strings.Fields(msg), " ")
	if msg == "" {
		return Event{}, errors.New("history: empty message")
	}
	ev := Event{Time: l.now().In(l.loc), Message: msg}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Event{}, fmt.Errorf("open history: %w", err)
	}
	if _, err := f.WriteString(ev.String() + "\n"); err != nil {
		_ = f.Close()
		return Event{}, fmt.Errorf("append history: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return Event{}, fmt.Errorf("sync history: %w", err)
	}
	if err := f.Close(); err != nil {
		return Event{}, fmt.Errorf("close history: %w", err)
	}
	return ev, nil
}

// Events reads every event in file order. A missing file yields no events.
func (l *Log) Events() ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		stamp, msg, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("history line %d: missing message", line)
		}
		ts, err := time.Parse(Layout, stamp)
		if err != nil {
			return nil, fmt.Errorf("history line %d: %w", line, err)
		}
		events = append(events, Event{Time: ts, Message: msg})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return events, nil
}
