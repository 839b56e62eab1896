// Package events implements the transaction event emitter: formatting,
// ULID event ids, and ordered, durable, flush-per-line appends to a
// newline-delimited JSON log (spec.md §4.4).
//
// The bounded-queue / back-pressure design is grounded on the spec.md §9
// redesign note ("event emission as print-to-log -> bounded queue between
// tick and flusher; back-pressure is explicit"), and on
// simonvetter-modbus/server.go's pattern of a single goroutine owning a
// resource (there: the listener and client list; here: the log file
// handle) behind a mutex.
package events

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/logging"
)

// Actor identifies the system actor that emitted an event.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Validation carries the envelope's acceptance status.
type Validation struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Base is the common envelope embedded, via anonymous struct embedding, in
// every concrete event payload so json.Marshal flattens it alongside the
// event-specific fields (spec.md §3 Event entity).
type Base struct {
	EventType string  `json:"eventType"`
	EventID   string  `json:"eventId"`
	TS        string  `json:"ts"`
	domain.HierarchyIDs
	OrderID    *string    `json:"orderId"`
	SKU        *string    `json:"sku"`
	Actor      Actor      `json:"actor"`
	Validation Validation `json:"validation"`
}

// Emitter appends JSON event records to a newline-delimited log file. A
// single background goroutine owns the file handle and performs the
// synchronous append+flush; callers hand events to it over a bounded
// channel, so a full queue applies back-pressure to the tick producer
// (correctness over availability, spec.md §5).
type Emitter struct {
	logger  logging.LeveledLogger
	queue   chan json.RawMessage
	closed  chan struct{} // closed once Close() has been called
	stopped chan struct{} // closed once run() has exited
	file    *os.File

	mu       sync.Mutex
	fatalErr error

	closeOnce sync.Once
	closeErr  error

	entropy *ulid.MonotonicEntropy
}

// Open creates (or appends to) the log file at path and starts the flusher
// goroutine. queueDepth bounds the channel between producer and flusher.
func Open(path string, queueDepth int, logger logging.LeveledLogger) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening transaction log %q: %w", path, err)
	}

	e := &Emitter{
		logger:  logger,
		queue:   make(chan json.RawMessage, queueDepth),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
		file:    f,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}

	go e.run()

	return e, nil
}

// NewULID mints a new, monotonically-sortable event id.
func (e *Emitter) NewULID(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), e.entropy)
	if err != nil {
		// entropy exhaustion is effectively impossible with crypto/rand;
		// fall back to a fresh ULID without monotonic guarantees rather
		// than propagate an error from an id minter.
		id, _ = ulid.New(ulid.Timestamp(now), rand.Reader)
	}
	return id.String()
}

// Emit serializes payload (which must embed Base) and enqueues it for
// append. It blocks if the queue is full, which is the deliberate
// back-pressure mechanism (spec.md §5).
func (e *Emitter) Emit(payload any) error {
	e.mu.Lock()
	fatal := e.fatalErr
	e.mu.Unlock()
	if fatal != nil {
		return fmt.Errorf("event emitter halted: %w", fatal)
	}

	select {
	case <-e.closed:
		return fmt.Errorf("event emitter closed")
	default:
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	select {
	case e.queue <- raw:
		return nil
	case <-e.closed:
		return fmt.Errorf("event emitter closed")
	}
}

// run is the flusher goroutine: appends each queued line and fsyncs before
// moving on, so a crash never leaves a torn final line (spec.md §4.4, §7).
func (e *Emitter) run() {
	defer close(e.stopped)
	for raw := range e.queue {
		line := append(append([]byte{}, raw...), '\n')
		if _, err := e.file.Write(line); err != nil {
			e.halt(fmt.Errorf("appending event: %w", err))
			return
		}
		if err := e.file.Sync(); err != nil {
			e.halt(fmt.Errorf("flushing event log: %w", err))
			return
		}
	}
}

func (e *Emitter) halt(err error) {
	e.mu.Lock()
	e.fatalErr = err
	e.mu.Unlock()
	e.logger.Fatalf("transaction log append failed, halting: %v", err)
}

// Close drains the queue, waits for the flusher to exit, and closes the
// underlying file. It is idempotent: callers on both a deferred
// early-exit path and an explicit graceful-shutdown path may call it, and
// only the first call does the work.
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		close(e.queue)
		<-e.stopped
		e.closeErr = e.file.Close()
	})
	return e.closeErr
}

// sample reports true with probability p (0..1), using crypto/rand so the
// 2%-of-completions BottleCompleted sampling (spec.md §4.4) does not depend
// on a seeded PRNG shared with the microstop/breakdown samplers.
func sample(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return false
	}
	return float64(n.Int64()) < p*1_000_000
}

// Sample exposes sample for callers outside this package (the simulator's
// BottleCompleted gating, spec.md §4.4 and Open Questions).
func Sample(p float64) bool { return sample(p) }

// NewBase builds the common event envelope: a fresh ULID, a millisecond
// ISO-8601 UTC timestamp, the ISA-95 hierarchy, and the fixed system actor
// and ACCEPTED validation fields (spec.md §4.4).
func (e *Emitter) NewBase(eventType string, now time.Time, hierarchy domain.HierarchyIDs, simID string, orderID, sku *string) Base {
	return Base{
		EventType:    eventType,
		EventID:      e.NewULID(now),
		TS:           now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		HierarchyIDs: hierarchy,
		OrderID:      orderID,
		SKU:          sku,
		Actor:        Actor{Type: "system", ID: simID},
		Validation:   Validation{Status: "ACCEPTED", Version: "v1"},
	}
}
