// Package bridge composes the frame codec, worker pool, feeder, reader, and
// monitor into the single compute(partition, context) operation the host
// runtime drives per task.
package bridge

import "errors"

// Kind classifies a bridge failure per the error taxonomy: what triggered
// it and how the driver should present it to the host.
type Kind int

const (
	// KindUserError: the worker reported PYTHON_EXCEPTION_THROWN.
	KindUserError Kind = iota
	// KindWorkerInputFailure: the feeder recorded an exception before the
	// reader observed a socket failure.
	KindWorkerInputFailure
	// KindWorkerCrashed: EOF on read with no feeder exception and the task
	// not cancelled.
	KindWorkerCrashed
	// KindTaskCancelled: an I/O error occurred while the task context was
	// cancelled.
	KindTaskCancelled
	// KindHostShuttingDown: an I/O error occurred while the host runtime is
	// stopping; callers should swallow this and terminate silently.
	KindHostShuttingDown
	// KindProtocolError: unknown sentinel, short read, or missing terminal
	// END_OF_STREAM.
	KindProtocolError
	// KindAggregatorProtocolError: EOF before the accumulator sink's ack
	// byte.
	KindAggregatorProtocolError
)

func (k Kind) String() string {
	switch k {
	case KindUserError:
		return "USER_ERROR"
	case KindWorkerInputFailure:
		return "WORKER_INPUT_FAILURE"
	case KindWorkerCrashed:
		return "WORKER_CRASHED"
	case KindTaskCancelled:
		return "TASK_CANCELLED"
	case KindHostShuttingDown:
		return "HOST_SHUTTING_DOWN"
	case KindProtocolError:
		return "PROTOCOL_ERROR"
	case KindAggregatorProtocolError:
		return "AGGREGATOR_PROTOCOL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified bridge failure. Callers switch on Kind rather than
// string-matching Error().
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Is allows errors.Is(err, bridge.KindTaskCancelled) style checks against a
// bare Kind sentinel by comparing classified Errors' Kind fields.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
