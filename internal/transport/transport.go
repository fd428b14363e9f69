// Package transport implements the LPC55 ROM ISP link primitives on top of
// UART framing packets: command frames, response frames and the raw data
// phase in both directions.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigbag/lpc55-isp/internal/framing"
	"github.com/bigbag/lpc55-isp/internal/protocol"
)

// Defaults
const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxPacketSize = 512
	pollInterval         = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when no complete packet arrives in time.
	ErrTimeout = errors.New("timeout waiting for device")
	// ErrNak is returned when the device rejects a packet.
	ErrNak = errors.New("device sent NAK")
)

// Port is the byte-level link the connection runs on.
// Implemented by serial.Port.
type Port interface {
	Write(data []byte) (int, error)
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
}

// ProgressCallback is called to report data phase progress.
type ProgressCallback func(current, total int)

// Conn drives the ISP framing protocol over a Port.
// A Conn is not safe for concurrent use.
type Conn struct {
	port          Port
	timeout       time.Duration
	maxPacketSize int
	logger        *slog.Logger
	progress      ProgressCallback
	buffer        []byte
}

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout sets the per-packet read timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Conn) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxPacketSize sets the maximum DATA packet payload size.
func WithMaxPacketSize(size int) Option {
	return func(c *Conn) {
		if size > 0 && size <= framing.MaxPayloadSize {
			c.maxPacketSize = size
		}
	}
}

// WithLogger sets the logger for packet-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new Conn for the given port.
func New(port Port, opts ...Option) *Conn {
	c := &Conn{
		port:          port,
		timeout:       DefaultTimeout,
		maxPacketSize: DefaultMaxPacketSize,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProgressCallback sets the progress callback function.
func (c *Conn) SetProgressCallback(cb ProgressCallback) {
	c.progress = cb
}

func (c *Conn) reportProgress(current, total int) {
	if c.progress != nil {
		c.progress(current, total)
	}
}

// SendCommand frames and transmits a command packet and waits for the
// device to acknowledge it.
func (c *Conn) SendCommand(tag protocol.CommandTag, args []uint32) error {
	payload, err := protocol.NewCommand(tag, args).Encode()
	if err != nil {
		return err
	}

	c.logger.Debug("send command", "tag", tag, "args", args)
	if err := c.writePacket(framing.TypeCommand, payload); err != nil {
		return fmt.Errorf("command %s: %w", tag, err)
	}
	return nil
}

// ReadResponse reads one response packet and checks its tag and status.
func (c *Conn) ReadResponse(code protocol.ResponseCode) error {
	resp, err := c.readResponsePacket()
	if err != nil {
		return err
	}

	c.logger.Debug("response", "tag", resp.Tag, "params", resp.Params)
	if resp.Tag != code {
		return &protocol.ResponseMismatchError{Expected: code, Observed: resp.Tag}
	}
	if !resp.IsSuccess() {
		return &protocol.StatusError{Response: resp.Tag, Status: resp.Status()}
	}
	return nil
}

// SendData transmits data as a sequence of DATA packets, each acknowledged
// by the device.
func (c *Conn) SendData(data []byte) error {
	total := len(data)
	for start := 0; start < total; start += c.maxPacketSize {
		end := min(start+c.maxPacketSize, total)

		if err := c.writePacket(framing.TypeData, data[start:end]); err != nil {
			if errors.Is(err, protocol.ErrAborted) {
				return c.abortReason(err)
			}
			return fmt.Errorf("data packet at offset %d: %w", start, err)
		}

		c.reportProgress(end, total)
	}

	c.logger.Debug("data sent", "bytes", total)
	return nil
}

// RecvData reads exactly count bytes of DATA packets from the device.
func (c *Conn) RecvData(count uint32) ([]byte, error) {
	data := make([]byte, 0, count)

	for uint32(len(data)) < count {
		pkt, err := c.readPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &protocol.ShortReadError{Want: count, Got: uint32(len(data)), Err: io.ErrUnexpectedEOF}
			}
			return nil, err
		}

		switch pkt.Type {
		case framing.TypeData:
			if err := c.sendAck(); err != nil {
				return nil, err
			}
			if uint64(len(data))+uint64(len(pkt.Payload)) > uint64(count) {
				return nil, &protocol.OverrunError{Want: count, Got: uint32(len(data) + len(pkt.Payload))}
			}
			data = append(data, pkt.Payload...)
			c.reportProgress(len(data), int(count))

		case framing.TypeCommand:
			// Device ended the phase early, its response carries the reason
			if err := c.sendAck(); err != nil {
				return nil, err
			}
			short := &protocol.ShortReadError{Want: count, Got: uint32(len(data))}
			if resp, err := protocol.DecodeResponse(pkt.Payload); err == nil && !resp.IsSuccess() {
				short.Err = &protocol.StatusError{Response: resp.Tag, Status: resp.Status()}
			}
			return nil, short

		default:
			return nil, fmt.Errorf("%w: %s during data phase", protocol.ErrUnexpectedPacket, framing.TypeName(pkt.Type))
		}
	}

	c.logger.Debug("data received", "bytes", len(data))
	return data, nil
}

// PingResponse holds the ROM bootloader version reported by a ping.
type PingResponse struct {
	Name    byte
	Major   uint8
	Minor   uint8
	Bugfix  uint8
	Options uint16
}

// Version returns the version in the bootloader's own notation, e.g. "P1.3.0".
func (p *PingResponse) Version() string {
	return fmt.Sprintf("%c%d.%d.%d", p.Name, p.Major, p.Minor, p.Bugfix)
}

// Ping checks that the ROM bootloader is listening.
func (c *Conn) Ping() (*PingResponse, error) {
	c.buffer = nil
	if _, err := c.port.Write(framing.EncodeControl(framing.TypePing)); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	pkt, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if pkt.Type != framing.TypePingResponse {
		return nil, fmt.Errorf("%w: expected PING_RESPONSE, got %s", protocol.ErrUnexpectedPacket, framing.TypeName(pkt.Type))
	}

	// Payload: bugfix, minor, major, name, options (little-endian)
	p := pkt.Payload
	return &PingResponse{
		Bugfix:  p[0],
		Minor:   p[1],
		Major:   p[2],
		Name:    p[3],
		Options: uint16(p[4]) | uint16(p[5])<<8,
	}, nil
}

// writePacket sends a COMMAND or DATA packet and waits for its ACK.
func (c *Conn) writePacket(typ byte, payload []byte) error {
	frame := framing.Encode(typ, payload)
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return c.waitAck()
}

// waitAck reads the device's acknowledgement of the last packet.
func (c *Conn) waitAck() error {
	pkt, err := c.readPacket()
	if err != nil {
		return err
	}

	switch pkt.Type {
	case framing.TypeAck:
		return nil
	case framing.TypeNak:
		return ErrNak
	case framing.TypeAckAbort:
		return protocol.ErrAborted
	default:
		return fmt.Errorf("%w: expected ACK, got %s", protocol.ErrUnexpectedPacket, framing.TypeName(pkt.Type))
	}
}

func (c *Conn) sendAck() error {
	if _, err := c.port.Write(framing.EncodeControl(framing.TypeAck)); err != nil {
		return fmt.Errorf("write ACK failed: %w", err)
	}
	return nil
}

// readResponsePacket reads a COMMAND packet from the device, acknowledges
// it and decodes the response it carries.
func (c *Conn) readResponsePacket() (*protocol.Response, error) {
	pkt, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if pkt.Type != framing.TypeCommand {
		return nil, fmt.Errorf("%w: expected COMMAND, got %s", protocol.ErrUnexpectedPacket, framing.TypeName(pkt.Type))
	}
	if err := c.sendAck(); err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(pkt.Payload)
}

// abortReason reads the response that follows an ACK_ABORT and folds its
// status into the returned error.
func (c *Conn) abortReason(cause error) error {
	resp, err := c.readResponsePacket()
	if err != nil {
		return cause
	}
	return fmt.Errorf("%w: %s", cause, resp.ErrorString())
}

// readPacket reads and decodes the next packet from the port.
func (c *Conn) readPacket() (*framing.Packet, error) {
	deadline := time.Now().Add(c.timeout)

	for {
		frame, remaining := framing.ReadFrame(c.buffer)
		c.buffer = remaining
		if frame != nil {
			return framing.Decode(frame)
		}

		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		chunk := make([]byte, 256)
		n, err := c.port.ReadWithTimeout(chunk, pollInterval)
		if n > 0 {
			c.buffer = append(c.buffer, chunk[:n]...)
		}
		if err != nil && n == 0 {
			return nil, fmt.Errorf("read failed: %w", err)
		}
	}
}
