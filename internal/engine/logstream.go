package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

// subscriberBufferSize is the channel buffer for each log subscriber.
// Entries are dropped for a subscriber that falls this far behind; the stream's
// own entry list is never lossy.
const subscriberBufferSize = 64

// LogStream is the append-only event log of the current run, with live fan-out
// to subscribers. It is safe for concurrent use.
type LogStream struct {
	mu      sync.Mutex
	entries []model.LogEntry
	subs    map[int]chan model.LogEntry
	nextID  int
	closed  bool
	now     func() time.Time
}

// NewLogStream creates an empty, open log stream.
func NewLogStream() *LogStream {
	return &LogStream{
		subs: make(map[int]chan model.LogEntry),
		now:  time.Now,
	}
}

// Reset clears all entries for a new run and reopens the stream. Subscribers of
// the previous run are closed.
func (l *LogStream) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeSubsLocked()
	l.entries = nil
	l.closed = false
}

// Append records a message and publishes it to subscribers. Timestamps never
// go backwards even if the wall clock does.
func (l *LogStream) Append(msg string) model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC()
	if n := len(l.entries); n > 0 && ts.Before(l.entries[n-1].Timestamp) {
		ts = l.entries[n-1].Timestamp
	}
	e := model.LogEntry{Seq: len(l.entries), Timestamp: ts, Message: msg}
	l.entries = append(l.entries, e)

	if l.closed {
		return e
	}
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			// Drop for slow subscribers to avoid blocking the pipeline.
		}
	}
	return e
}

// Appendf formats and appends a message.
func (l *LogStream) Appendf(format string, args ...any) model.LogEntry {
	return l.Append(fmt.Sprintf(format, args...))
}

// Entries returns a copy of all entries of the current run.
func (l *LogStream) Entries() []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Subscribe returns the entries recorded so far and a channel that receives
// later entries, plus an unsubscribe function. If the run has already finished,
// the channel is closed immediately.
func (l *LogStream) Subscribe() ([]model.LogEntry, <-chan model.LogEntry, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	backlog := make([]model.LogEntry, len(l.entries))
	copy(backlog, l.entries)

	ch := make(chan model.LogEntry, subscriberBufferSize)
	if l.closed {
		close(ch)
		return backlog, ch, func() {}
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	return backlog, ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
	}
}

// Close signals the end of the run. Subscriber channels are closed; entries stay
// readable until the next Reset.
func (l *LogStream) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.closeSubsLocked()
}

func (l *LogStream) closeSubsLocked() {
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
}
