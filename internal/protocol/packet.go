package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command packet header flags
const (
	FlagNone         = 0x00
	FlagHasDataPhase = 0x01
)

// MaxParams is the number of 32-bit parameters a command packet can carry.
const MaxParams = 7

// Command represents a bootloader command packet.
type Command struct {
	Tag    CommandTag
	Flags  byte
	Params []uint32
}

// Response represents a bootloader response packet.
type Response struct {
	Tag    ResponseCode
	Flags  byte
	Params []uint32
}

// NewCommand creates a command packet with the data phase flag derived
// from the tag and arguments.
func NewCommand(tag CommandTag, args []uint32) *Command {
	c := &Command{
		Tag:    tag,
		Flags:  FlagNone,
		Params: args,
	}
	if HasDataOut(tag, args) {
		c.Flags = FlagHasDataPhase
	}
	return c
}

// Encode serializes the command to bytes (before framing).
func (c *Command) Encode() ([]byte, error) {
	// Packet format:
	// 0: tag
	// 1: flags
	// 2: reserved
	// 3: parameter count
	// 4+: parameters (little-endian u32 each)

	if len(c.Params) > MaxParams {
		return nil, fmt.Errorf("too many parameters for %s: %d (max %d)", c.Tag, len(c.Params), MaxParams)
	}

	packet := make([]byte, 4+4*len(c.Params))
	packet[0] = byte(c.Tag)
	packet[1] = c.Flags
	packet[2] = 0
	packet[3] = byte(len(c.Params))
	for i, p := range c.Params {
		binary.LittleEndian.PutUint32(packet[4+4*i:], p)
	}

	return packet, nil
}

// DecodeResponse parses a response from a command packet payload.
func DecodeResponse(data []byte) (*Response, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("response too short: %d bytes", len(data))
	}

	count := int(data[3])
	if len(data) < 4+4*count {
		return nil, fmt.Errorf("parameter count mismatch: expected %d, have %d bytes", count, len(data)-4)
	}

	resp := &Response{
		Tag:    ResponseCode(data[0]),
		Flags:  data[1],
		Params: make([]uint32, count),
	}
	for i := range resp.Params {
		resp.Params[i] = binary.LittleEndian.Uint32(data[4+4*i:])
	}

	return resp, nil
}

// Status returns the status code carried in the first parameter.
func (r *Response) Status() uint32 {
	if len(r.Params) == 0 {
		return StatusSuccess
	}
	return r.Params[0]
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status() == StatusSuccess
}

// ErrorString returns a human-readable error message.
func (r *Response) ErrorString() string {
	if r.IsSuccess() {
		return ""
	}
	return fmt.Sprintf("status=%d (%s)", r.Status(), StatusMessage(r.Status()))
}
