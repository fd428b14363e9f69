// Package isp sequences LPC55 ROM ISP command exchanges: command frame,
// acknowledgement, an optional data phase and its acknowledgement.
package isp

import (
	"io"
	"log/slog"

	"github.com/bigbag/lpc55-isp/internal/protocol"
)

// Transport is the set of link primitives a command exchange is built from.
// Implemented by transport.Conn.
type Transport interface {
	SendCommand(tag protocol.CommandTag, args []uint32) error
	ReadResponse(code protocol.ResponseCode) error
	SendData(data []byte) error
	RecvData(count uint32) ([]byte, error)
}

// DataPhase describes what follows a command's acknowledgement.
// It is one of NoData, SendPayload or ReceivePayload.
type DataPhase interface {
	dataPhase()
}

// NoData means nothing is exchanged after the command acknowledgement.
type NoData struct{}

// SendPayload transmits Data after the command acknowledgement, then
// expects a response with Code. Data is never modified or retained.
type SendPayload struct {
	Code protocol.ResponseCode
	Data []byte
}

// ReceivePayload reads exactly Length bytes after the command
// acknowledgement, then expects a response with Code.
type ReceivePayload struct {
	Code   protocol.ResponseCode
	Length uint32
}

func (NoData) dataPhase()         {}
func (SendPayload) dataPhase()    {}
func (ReceivePayload) dataPhase() {}

// Client executes command exchanges over a Transport.
// The transport is owned exclusively by one exchange at a time; a Client
// is not safe for concurrent use.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// New creates a new Client. A nil logger discards output.
func New(t Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{transport: t, logger: logger}
}

// Execute runs one command exchange:
//  1. send the command frame built from tag and args
//  2. read the response and check it against ack
//  3. run the data phase
//  4. for SendPayload and ReceivePayload, check the phase's response
//
// It returns the received bytes for ReceivePayload and nil otherwise. Any
// failure ends the exchange immediately; nothing is retried.
func (c *Client) Execute(tag protocol.CommandTag, ack protocol.ResponseCode, args []uint32, phase DataPhase) ([]byte, error) {
	switch phase.(type) {
	case NoData, SendPayload, ReceivePayload:
	case nil:
		return nil, argumentError(tag, "missing data phase")
	default:
		return nil, argumentError(tag, "unsupported data phase %T", phase)
	}
	if len(args) > protocol.MaxParams {
		return nil, argumentError(tag, "%d arguments exceed the limit of %d", len(args), protocol.MaxParams)
	}

	c.logger.Debug("execute", "tag", tag, "args", args)

	if err := c.transport.SendCommand(tag, args); err != nil {
		return nil, newError(tag, StageCommand, ack, err)
	}
	if err := c.transport.ReadResponse(ack); err != nil {
		return nil, newError(tag, StageCommandAck, ack, err)
	}

	switch p := phase.(type) {
	case NoData:
		return nil, nil

	case SendPayload:
		c.logger.Debug("data phase", "tag", tag, "stage", StageDataPhase, "bytes", len(p.Data))
		if err := c.transport.SendData(p.Data); err != nil {
			return nil, newError(tag, StageDataPhase, p.Code, err)
		}
		if err := c.transport.ReadResponse(p.Code); err != nil {
			return nil, newError(tag, StageDataAck, p.Code, err)
		}
		return nil, nil

	case ReceivePayload:
		c.logger.Debug("data phase", "tag", tag, "stage", StageDataPhase, "bytes", p.Length)
		data, err := c.transport.RecvData(p.Length)
		if err != nil {
			return nil, newError(tag, StageDataPhase, p.Code, err)
		}
		switch n := uint64(len(data)); {
		case n < uint64(p.Length):
			return nil, newError(tag, StageDataPhase, p.Code, &protocol.ShortReadError{Want: p.Length, Got: uint32(n)})
		case n > uint64(p.Length):
			return nil, newError(tag, StageDataPhase, p.Code, &protocol.OverrunError{Want: p.Length, Got: uint32(min(n, uint64(^uint32(0))))})
		}
		if err := c.transport.ReadResponse(p.Code); err != nil {
			return nil, newError(tag, StageDataAck, p.Code, err)
		}
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}

	panic("unreachable")
}
