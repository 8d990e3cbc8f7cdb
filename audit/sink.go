// Package audit appends operational events (connect, deploy, fail) to a CSV
// log rotated per process start. Writes are best-effort: callers never block
// on them and never see their errors.
package audit

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const queueSize = 256

type entry struct {
	at       time.Time
	event    string
	duration int
}

type Sink struct {
	path  string
	queue chan entry
	done  chan struct{}
	nowFn func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates a sink writing to <dir>/VisionLink_Deployment_YYYY_MM_DD_HH_MM.csv,
// named after the process start time down to the minute.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	start := time.Now()
	name := fmt.Sprintf("VisionLink_Deployment_%04d_%02d_%02d_%02d_%02d.csv",
		start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute())
	s := &Sink{
		path:  filepath.Join(dir, name),
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
		nowFn: time.Now,
	}
	go s.writeLoop()
	return s, nil
}

func (s *Sink) Path() string { return s.path }

// Record enqueues one (timestamp, event, duration) row. Fire-and-forget: if
// the queue is full, or the sink is already closed, the row is dropped rather
// than blocking or failing the caller.
func (s *Sink) Record(event string, durationSeconds int) {
	e := entry{at: s.nowFn(), event: event, duration: durationSeconds}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		log.Printf("audit: sink closed, dropping %q", event)
		return
	}
	select {
	case s.queue <- e:
	default:
		log.Printf("audit: queue full, dropping %q", event)
	}
}

// Close drains pending rows and stops the writer. Safe to call more than
// once; rows recorded after Close are dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) writeLoop() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.append(e); err != nil {
			log.Printf("audit: write: %v", err)
		}
	}
}

func (s *Sink) append(e entry) error {
	newFile := false
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		newFile = true
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write([]string{"Timestamp", "Event", "Duration"}); err != nil {
			return err
		}
	}
	if err := w.Write([]string{e.at.UTC().Format(time.RFC3339), e.event, strconv.Itoa(e.duration)}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
