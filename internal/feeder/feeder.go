// Package feeder writes the task header and upstream record stream to a
// worker's input socket, running as a daemon background producer.
package feeder

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dohr-michael/polybridge/internal/broadcast"
	"github.com/dohr-michael/polybridge/internal/frame"
	"github.com/dohr-michael/polybridge/internal/taskctx"
)

// TaskHeader is everything written once at the start of a task session,
// before the record stream.
type TaskHeader struct {
	Partition    int32
	WorkDir      string
	IncludePaths []string
	Command      []byte
}

// Element is one upstream record. Exactly one of Bytes, UTF, or the Pair
// variant fields is populated, and the populated shape must be the same for
// every element in a stream (checked lazily against the first element).
type Element struct {
	Bytes []byte
	UTF   string
	IsUTF bool

	// PairA/PairB hold a two-part record (key, value); Pair is true when
	// either is used instead of the single-value fields above.
	Pair  bool
	PairA []byte
	PairB []byte
	// PairUTF: when Pair is true, whether PairA/PairB are UTF-8 text rather
	// than raw bytes (stored as strings in that case, via PairAUTF/PairBUTF).
	PairUTF bool
	PairAUTF string
	PairBUTF string
}

// Feeder writes a task header, then the record stream, then the section
// terminators, to a worker's write half. It never lets an error escape its
// own goroutine: Run stores the failure and half-closes the socket so the
// reader observes it.
type Feeder struct {
	conn       net.Conn
	mem        taskctx.MemoryManagers
	header     TaskHeader
	resident   map[int64]struct{}
	broadcasts []broadcast.Broadcast
	records    <-chan Element
	sourceErr  <-chan error // optional: upstream iteration failure, if any

	bufSize int

	mu      sync.Mutex
	failure error
	done    chan struct{}
	stop    chan struct{}
}

// New builds a Feeder that will write to conn. resident is the worker's
// current broadcast resident set (mutated in place as the delta is
// computed, per the pool's contract). records is closed by the caller once
// the upstream is exhausted; sourceErr, if non-nil, may deliver one
// upstream-iteration error before closing.
func New(conn net.Conn, resident map[int64]struct{}, mem taskctx.MemoryManagers, header TaskHeader, broadcasts []broadcast.Broadcast, records <-chan Element, sourceErr <-chan error, bufSize int) *Feeder {
	if bufSize <= 0 {
		bufSize = frame.DefaultBufferSize
	}
	return &Feeder{
		conn:       conn,
		mem:        mem,
		header:     header,
		resident:   resident,
		broadcasts: broadcasts,
		records:    records,
		sourceErr:  sourceErr,
		bufSize:    bufSize,
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

// Done returns a channel closed once Run has returned, for the driver's
// completion-hook wait.
func (f *Feeder) Done() <-chan struct{} { return f.done }

// Stop interrupts a running Feeder. It unblocks a pending receive from the
// records channel and, since a blocked socket write cannot be selected on,
// forces an expired write deadline so an in-flight Write returns instead of
// waiting forever on a worker that stopped reading. Safe to call more than
// once and after Run has already returned.
func (f *Feeder) Stop() {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	f.conn.SetWriteDeadline(time.Now())
}

// Failure returns the recorded feeder error, if any, after Run has
// completed. Safe to call concurrently with Run per the exception-slot
// contract the reader relies on.
func (f *Feeder) Failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failure
}

func (f *Feeder) setFailure(err error) {
	f.mu.Lock()
	if f.failure == nil {
		f.failure = err
	}
	f.mu.Unlock()
}

// Run writes the header and record stream, then closes done. It must be
// launched as a background goroutine; it never panics on I/O failure.
func (f *Feeder) Run() {
	defer close(f.done)
	defer f.releaseMemory()

	w := frame.NewWriter(f.conn, f.bufSize)

	if err := f.writeHeader(w); err != nil {
		f.fail(err)
		return
	}
	if err := f.writeRecords(w); err != nil {
		f.fail(err)
		return
	}
	if err := w.WriteSentinel(frame.EndOfDataSection); err != nil {
		f.fail(err)
		return
	}
	if err := w.WriteSentinel(frame.EndOfStream); err != nil {
		f.fail(err)
		return
	}
	if err := w.Flush(); err != nil {
		f.fail(err)
		return
	}
}

func (f *Feeder) fail(err error) {
	f.setFailure(err)
	if hc, ok := f.conn.(interface{ CloseWrite() error }); ok {
		hc.CloseWrite()
	} else {
		f.conn.Close()
	}
}

func (f *Feeder) releaseMemory() {
	if f.mem == nil {
		return
	}
	f.mem.ReleaseShuffleMemoryForCurrentThread()
	f.mem.ReleaseUnrollMemoryForCurrentThread()
}

func (f *Feeder) writeHeader(w *frame.Writer) error {
	if err := w.WriteInt32(f.header.Partition); err != nil {
		return fmt.Errorf("feeder: write partition: %w", err)
	}
	if err := w.WriteUTF(f.header.WorkDir); err != nil {
		return fmt.Errorf("feeder: write workdir: %w", err)
	}
	if err := w.WriteInt32(int32(len(f.header.IncludePaths))); err != nil {
		return fmt.Errorf("feeder: write include count: %w", err)
	}
	for _, p := range f.header.IncludePaths {
		if err := w.WriteUTF(p); err != nil {
			return fmt.Errorf("feeder: write include path: %w", err)
		}
	}

	entries := broadcast.Delta(f.resident, f.broadcasts)
	if err := w.WriteInt32(int32(len(entries))); err != nil {
		return fmt.Errorf("feeder: write broadcast delta count: %w", err)
	}
	for _, e := range entries {
		wireID := broadcast.EncodeID(e.ID, e.Register)
		if err := w.WriteInt64(wireID); err != nil {
			return fmt.Errorf("feeder: write broadcast id: %w", err)
		}
		if e.Register {
			if err := w.WriteFrame(e.Payload); err != nil {
				return fmt.Errorf("feeder: write broadcast payload: %w", err)
			}
		}
	}

	if err := w.WriteFrame(f.header.Command); err != nil {
		return fmt.Errorf("feeder: write command: %w", err)
	}
	return nil
}

// encoding is fixed after the first element is observed; a record stream
// cannot switch shapes mid-stream.
type encoding int

const (
	encUnset encoding = iota
	encBytes
	encUTF
	encBytesPair
	encUTFPair
)

func (f *Feeder) writeRecords(w *frame.Writer) error {
	enc := encUnset

records:
	for {
		select {
		case <-f.stop:
			return fmt.Errorf("feeder: stopped")
		case el, ok := <-f.records:
			if !ok {
				break records
			}
			got, err := classify(el)
			if err != nil {
				return err
			}
			if enc == encUnset {
				enc = got
			} else if got != enc {
				return fmt.Errorf("feeder: mixed element types within one stream")
			}
			if err := writeElement(w, enc, el); err != nil {
				return err
			}
		}
	}

	if f.sourceErr != nil {
		select {
		case err := <-f.sourceErr:
			if err != nil {
				return fmt.Errorf("feeder: upstream iteration: %w", err)
			}
		default:
		}
	}
	return nil
}

func classify(el Element) (encoding, error) {
	switch {
	case el.Pair && !el.PairUTF:
		return encBytesPair, nil
	case el.Pair && el.PairUTF:
		return encUTFPair, nil
	case el.IsUTF:
		return encUTF, nil
	case el.Bytes != nil:
		return encBytes, nil
	default:
		return encUnset, fmt.Errorf("feeder: unexpected element type")
	}
}

func writeElement(w *frame.Writer, enc encoding, el Element) error {
	switch enc {
	case encBytes:
		return w.WriteFrame(el.Bytes)
	case encUTF:
		return w.WriteUTF(el.UTF)
	case encBytesPair:
		if err := w.WriteFrame(el.PairA); err != nil {
			return err
		}
		return w.WriteFrame(el.PairB)
	case encUTFPair:
		if err := w.WriteUTF(el.PairAUTF); err != nil {
			return err
		}
		return w.WriteUTF(el.PairBUTF)
	default:
		return fmt.Errorf("feeder: unexpected element type")
	}
}
