package dataset

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	queueDepth      = 1024
	maxFlushRetries = 3
)

// Appender buffers lines for one append-only file and flushes them on a
// timer, when the buffered bytes cross the threshold, and synchronously when
// its context is cancelled. A failed flush keeps the batch and retries on
// the next trigger, up to maxFlushRetries attempts, so an I/O hiccup does
// not silently drop rows.
type Appender struct {
	path      string
	header    []byte // written once if the file does not exist; may be nil
	interval  time.Duration
	maxBuffer int

	lines chan []byte
	done  chan struct{}
}

func NewAppender(path string, header []byte, interval time.Duration, maxBuffer int) (*Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating dataset dir: %w", err)
	}
	return &Appender{
		path:      path,
		header:    header,
		interval:  interval,
		maxBuffer: maxBuffer,
		lines:     make(chan []byte, queueDepth),
		done:      make(chan struct{}),
	}, nil
}

// Append enqueues one line. When the queue is saturated the line is dropped
// with a log entry rather than stalling a submit request.
func (a *Appender) Append(line []byte) {
	select {
	case a.lines <- line:
	default:
		droppedRowsTotal.Inc()
		log.Printf("[Dataset] Buffer full, dropping row for %s\n", a.path)
	}
}

// Run drains the queue until ctx is cancelled, then performs one final
// synchronous flush. Call exactly once; Done reports completion.
func (a *Appender) Run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var pending [][]byte
	pendingBytes := 0
	retries := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := a.writeAll(pending); err != nil {
			retries++
			if retries >= maxFlushRetries {
				droppedRowsTotal.Add(float64(len(pending)))
				log.Printf("[Dataset] Dropping %d rows after %d failed flushes: %v\n", len(pending), retries, err)
				pending = nil
				pendingBytes = 0
				retries = 0
				return
			}
			log.Printf("[Dataset] Flush failed (attempt %d), will retry: %v\n", retries, err)
			return
		}
		flushesTotal.Inc()
		pending = nil
		pendingBytes = 0
		retries = 0
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever is already queued, then flush synchronously.
			for {
				select {
				case line := <-a.lines:
					pending = append(pending, line)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case line := <-a.lines:
			pending = append(pending, line)
			pendingBytes += len(line)
			if pendingBytes >= a.maxBuffer {
				flush()
			}
		}
	}
}

// Done is closed once Run has finished its final flush.
func (a *Appender) Done() <-chan struct{} { return a.done }

func (a *Appender) writeAll(lines [][]byte) error {
	if a.header != nil {
		if _, err := os.Stat(a.path); os.IsNotExist(err) {
			if err := os.WriteFile(a.path, a.header, 0o644); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
		}
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", a.path, err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("appending to %s: %w", a.path, err)
		}
	}
	return f.Sync()
}
