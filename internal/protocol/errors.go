package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when the device aborts a data phase.
	ErrAborted = errors.New("device aborted data phase")
	// ErrUnexpectedPacket is returned when the device sends a packet type
	// the current exchange does not allow.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

// ResponseMismatchError indicates the device answered with a different
// response tag than the one the command requires.
type ResponseMismatchError struct {
	Expected ResponseCode
	Observed ResponseCode
}

func (e *ResponseMismatchError) Error() string {
	return fmt.Sprintf("unexpected response: expected %s, got %s", e.Expected, e.Observed)
}

// StatusError indicates the device reported a non-zero status.
type StatusError struct {
	Response ResponseCode
	Status   uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s reported status %d (%s)", e.Response, e.Status, StatusMessage(e.Status))
}

// ShortReadError indicates a receive data phase ended before the declared
// number of bytes arrived.
type ShortReadError struct {
	Want uint32
	Got  uint32
	Err  error
}

func (e *ShortReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("short read: expected %d bytes, got %d: %v", e.Want, e.Got, e.Err)
	}
	return fmt.Sprintf("short read: expected %d bytes, got %d", e.Want, e.Got)
}

func (e *ShortReadError) Unwrap() error {
	return e.Err
}

// OverrunError indicates the device sent more data than the receive phase
// declared.
type OverrunError struct {
	Want uint32
	Got  uint32
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("data overrun: expected %d bytes, got at least %d", e.Want, e.Got)
}
