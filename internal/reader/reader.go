// Package reader parses a worker's output stream into a lazy iterator of
// output records, interpreting the in-band timing, exception, accumulator,
// and end-of-stream control frames.
package reader

import (
	"errors"
	"fmt"
	"net"

	"github.com/dohr-michael/polybridge/internal/frame"
	"github.com/dohr-michael/polybridge/internal/taskctx"
)

// FeederStatus lets the reader check the feeder's exception slot before
// each read.
type FeederStatus interface {
	// Failure returns the feeder's recorded error, or nil while it is still
	// running cleanly or has finished without error.
	Failure() error
	// Done reports whether the feeder has exited.
	Done() <-chan struct{}
}

// AccumulatorSink receives the accumulator-section data frames read after
// END_OF_DATA_SECTION.
type AccumulatorSink interface {
	Accept(batch [][]byte) error
}

// state names the reader's position in the state machine.
type state int

const (
	stateReadLength state = iota
	stateAccumulatorSection
	stateDone
)

// Reader is a lazy, non-restartable, finite iterator of output byte-string
// frames with one-element lookahead.
type Reader struct {
	fr      *frame.Reader
	conn    net.Conn
	feeder  FeederStatus
	sink    AccumulatorSink
	metrics taskctx.Metrics
	task    taskctx.TaskContext

	st       state
	next     []byte
	hasNext  bool
	err      error
	finished bool
}

// New builds a Reader over conn's read half. feeder, sink, and metrics may
// all be nil for protocol-only tests that don't exercise their paths.
func New(conn net.Conn, feeder FeederStatus, sink AccumulatorSink, metrics taskctx.Metrics, task taskctx.TaskContext, bufSize int) *Reader {
	return &Reader{
		fr:      frame.NewReader(conn, bufSize),
		conn:    conn,
		feeder:  feeder,
		sink:    sink,
		metrics: metrics,
		task:    task,
	}
}

// HasNext reports whether a further data record is available, advancing the
// internal state machine as needed. It is idempotent until Next is called.
func (r *Reader) HasNext() bool {
	if r.hasNext || r.finished {
		return r.hasNext
	}
	r.advance()
	return r.hasNext
}

// Next returns the record HasNext staged, or an error if HasNext has not
// been called or returned false.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.hasNext {
		if !r.HasNext() {
			if r.err != nil {
				return nil, r.err
			}
			return nil, errors.New("reader: Next called with no available record")
		}
	}
	v := r.next
	r.next = nil
	r.hasNext = false
	return v, nil
}

// Err returns the terminal error, if any, once iteration has stopped.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	r.err = err
	r.finished = true
	r.hasNext = false
}

func (r *Reader) finish() {
	r.finished = true
	r.hasNext = false
}

// advance drives the state machine forward until a data record is staged,
// a terminal error occurs, or the stream ends cleanly.
func (r *Reader) advance() {
	for {
		if r.checkFeederFailure() {
			return
		}

		switch r.st {
		case stateReadLength:
			if r.readLength() {
				return
			}
		case stateAccumulatorSection:
			if r.readAccumulatorSection() {
				return
			}
		case stateDone:
			r.finish()
			return
		}
	}
}

// checkFeederFailure implements the "before entering any read, check the
// feeder's exception slot" rule. Returns true if it stopped iteration.
func (r *Reader) checkFeederFailure() bool {
	if r.feeder == nil {
		return false
	}
	if err := r.feeder.Failure(); err != nil {
		r.fail(&workerInputFailure{cause: err})
		return true
	}
	return false
}

// readLength performs one READ_LENGTH transition. Returns true if it staged
// a value or stopped iteration (error or clean end).
func (r *Reader) readLength() bool {
	length, isData, err := r.fr.ReadLength()
	if err != nil {
		return r.handleReadError(err)
	}

	if isData {
		b, err := r.fr.ReadFrame(length)
		if err != nil {
			return r.handleReadError(err)
		}
		r.next = b
		r.hasNext = true
		return true
	}

	switch frame.Sentinel(length) {
	case frame.TimingData:
		return r.readTimingData()
	case frame.ExceptionThrown:
		return r.readException()
	case frame.EndOfDataSection:
		r.st = stateAccumulatorSection
		return false
	default:
		r.fail(&protocolError{msg: fmt.Sprintf("unexpected sentinel %d in READ_LENGTH", length)})
		return true
	}
}

func (r *Reader) readTimingData() bool {
	vals := make([]int64, 5)
	for i := range vals {
		v, err := r.fr.ReadInt64()
		if err != nil {
			return r.handleReadError(err)
		}
		vals[i] = v
	}
	// order: boot-complete, init-complete, finish, memory-spilled, disk-spilled
	if r.metrics != nil {
		r.metrics.AddMemoryBytesSpilled(vals[3])
		r.metrics.AddDiskBytesSpilled(vals[4])
	}
	return false // loop back to READ_LENGTH
}

func (r *Reader) readException() bool {
	msg, err := r.fr.ReadUTF()
	if err != nil {
		return r.handleReadError(err)
	}
	r.fail(&userError{msg: msg})
	return true
}

func (r *Reader) readAccumulatorSection() bool {
	k, err := r.fr.ReadInt32()
	if err != nil {
		return r.handleReadError(err)
	}
	batch := make([][]byte, 0, k)
	for i := int32(0); i < k; i++ {
		length, isData, err := r.fr.ReadLength()
		if err != nil {
			return r.handleReadError(err)
		}
		if !isData {
			r.fail(&protocolError{msg: fmt.Sprintf("unexpected sentinel %d in accumulator section", length)})
			return true
		}
		b, err := r.fr.ReadFrame(length)
		if err != nil {
			return r.handleReadError(err)
		}
		batch = append(batch, b)
	}
	if r.sink != nil && len(batch) > 0 {
		if err := r.sink.Accept(batch); err != nil {
			r.fail(fmt.Errorf("reader: accumulator sink: %w", err))
			return true
		}
	}

	terminal, err := r.fr.ReadInt32()
	if err != nil {
		return r.handleReadError(err)
	}
	if frame.Sentinel(terminal) != frame.EndOfStream {
		r.fail(&protocolError{msg: fmt.Sprintf("expected END_OF_STREAM, got %d", terminal)})
		return true
	}
	r.st = stateDone
	return false
}

// handleReadError classifies a socket read failure per the exception
// routing table. Returns true (stop iteration).
func (r *Reader) handleReadError(err error) bool {
	if r.feeder != nil {
		if ferr := r.feeder.Failure(); ferr != nil {
			r.fail(&workerInputFailure{cause: ferr})
			return true
		}
	}
	if errors.Is(err, frame.ErrProtocol) {
		r.fail(&protocolError{msg: err.Error()})
		return true
	}
	if r.task != nil && r.task.IsCancelled() {
		r.fail(&taskCancelled{cause: err})
		return true
	}
	if isHostShuttingDown(err) {
		r.finish()
		return true
	}
	r.fail(&workerCrashed{cause: err})
	return true
}

// isHostShuttingDown is a hook point for the driver's shutdown flag,
// installed through SetShuttingDownCheck. Nothing in this module installs
// one, so by default it never reports a shutdown.
var isHostShuttingDown = func(err error) bool { return false }

// SetShuttingDownCheck lets the driver install host-shutdown detection
// without this package depending on the driver's shutdown signal type.
func SetShuttingDownCheck(fn func(error) bool) {
	if fn != nil {
		isHostShuttingDown = fn
	}
}

type userError struct{ msg string }

func (e *userError) Error() string { return "reader: user error: " + e.msg }

type workerInputFailure struct{ cause error }

func (e *workerInputFailure) Error() string { return fmt.Sprintf("reader: worker input failure: %v", e.cause) }
func (e *workerInputFailure) Unwrap() error { return e.cause }

type workerCrashed struct{ cause error }

func (e *workerCrashed) Error() string { return fmt.Sprintf("reader: worker crashed: %v", e.cause) }
func (e *workerCrashed) Unwrap() error { return e.cause }

type taskCancelled struct{ cause error }

func (e *taskCancelled) Error() string { return fmt.Sprintf("reader: task cancelled: %v", e.cause) }
func (e *taskCancelled) Unwrap() error { return e.cause }

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return "reader: protocol error: " + e.msg }

// UserMessage extracts the worker's error message from a user-error
// failure, or "" if err is not one.
func UserMessage(err error) (string, bool) {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.msg, true
	}
	return "", false
}

// IsUserError reports whether err originated from PYTHON_EXCEPTION_THROWN.
func IsUserError(err error) bool {
	var ue *userError
	return errors.As(err, &ue)
}

// IsWorkerInputFailure reports whether err originated from the feeder's
// exception slot.
func IsWorkerInputFailure(err error) bool {
	var e *workerInputFailure
	return errors.As(err, &e)
}

// IsWorkerCrashed reports whether err is an unexplained EOF.
func IsWorkerCrashed(err error) bool {
	var e *workerCrashed
	return errors.As(err, &e)
}

// IsTaskCancelled reports whether err occurred after task cancellation.
func IsTaskCancelled(err error) bool {
	var e *taskCancelled
	return errors.As(err, &e)
}

// IsProtocolError reports whether err is a protocol violation.
func IsProtocolError(err error) bool {
	var e *protocolError
	return errors.As(err, &e)
}
