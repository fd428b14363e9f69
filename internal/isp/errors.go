package isp

import (
	"errors"
	"fmt"

	"github.com/bigbag/lpc55-isp/internal/protocol"
)

// Error kinds. A *CommandError matches exactly one of these with errors.Is.
var (
	ErrTransport = errors.New("transport error")
	ErrProtocol  = errors.New("protocol error")
	ErrArgument  = errors.New("argument error")
	ErrInternal  = errors.New("internal invariant violated")
)

var errMissingPayload = errors.New("receive phase completed without a payload")

// Stage is the point of a command exchange an error occurred at.
type Stage int

const (
	StageArguments Stage = iota
	StageCommand
	StageCommandAck
	StageDataPhase
	StageDataAck
)

func (s Stage) String() string {
	switch s {
	case StageArguments:
		return "arguments"
	case StageCommand:
		return "command"
	case StageCommandAck:
		return "command ack"
	case StageDataPhase:
		return "data phase"
	case StageDataAck:
		return "data ack"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// CommandError describes a failed command exchange.
type CommandError struct {
	Tag   protocol.CommandTag
	Stage Stage
	// Kind is one of ErrTransport, ErrProtocol, ErrArgument, ErrInternal.
	Kind error
	// Expected is the response code awaited at an ack stage.
	Expected protocol.ResponseCode
	// Observed is set when the device answered with a different code.
	Observed protocol.ResponseCode
	Err      error
}

func (e *CommandError) Error() string {
	switch {
	case e.Observed != 0:
		return fmt.Sprintf("%s: %s: %v: expected %s, got %s", e.Tag, e.Stage, e.Kind, e.Expected, e.Observed)
	case e.Stage == StageCommandAck || e.Stage == StageDataAck:
		return fmt.Sprintf("%s: %s (%s): %v: %v", e.Tag, e.Stage, e.Expected, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v: %v", e.Tag, e.Stage, e.Kind, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is matches the error kind sentinels.
func (e *CommandError) Is(target error) bool {
	return e.Kind == target
}

// classify maps a transport-level failure to an error kind.
func classify(err error) error {
	var (
		mismatch *protocol.ResponseMismatchError
		status   *protocol.StatusError
		short    *protocol.ShortReadError
		overrun  *protocol.OverrunError
	)
	switch {
	case errors.As(err, &mismatch),
		errors.As(err, &status),
		errors.As(err, &short),
		errors.As(err, &overrun),
		errors.Is(err, protocol.ErrAborted),
		errors.Is(err, protocol.ErrUnexpectedPacket):
		return ErrProtocol
	default:
		return ErrTransport
	}
}

// newError builds the CommandError for a failure at stage.
func newError(tag protocol.CommandTag, stage Stage, expected protocol.ResponseCode, err error) *CommandError {
	e := &CommandError{
		Tag:   tag,
		Stage: stage,
		Kind:  classify(err),
		Err:   err,
	}
	if stage == StageCommandAck || stage == StageDataAck {
		e.Expected = expected
	}
	var mismatch *protocol.ResponseMismatchError
	if errors.As(err, &mismatch) {
		e.Observed = mismatch.Observed
	}
	return e
}

// argumentError builds the CommandError for an argument rejected before
// any frame was sent.
func argumentError(tag protocol.CommandTag, format string, args ...any) *CommandError {
	return &CommandError{
		Tag:   tag,
		Stage: StageArguments,
		Kind:  ErrArgument,
		Err:   fmt.Errorf(format, args...),
	}
}
