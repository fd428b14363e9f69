package framing

import (
	"encoding/binary"
	"fmt"
)

const StartByte = 0x5A

// Packet types
const (
	TypeAck          = 0xA1
	TypeNak          = 0xA2
	TypeAckAbort     = 0xA3
	TypeCommand      = 0xA4
	TypeData         = 0xA5
	TypePing         = 0xA6
	TypePingResponse = 0xA7
)

const (
	HeaderSize       = 6
	PingResponseSize = 10
	MaxPayloadSize   = 0xFFFF
)

// Packet is a decoded framing packet.
type Packet struct {
	Type    byte
	Payload []byte
}

// TypeName returns a human-readable name for a packet type.
func TypeName(typ byte) string {
	switch typ {
	case TypeAck:
		return "ACK"
	case TypeNak:
		return "NAK"
	case TypeAckAbort:
		return "ACK_ABORT"
	case TypeCommand:
		return "COMMAND"
	case TypeData:
		return "DATA"
	case TypePing:
		return "PING"
	case TypePingResponse:
		return "PING_RESPONSE"
	default:
		return fmt.Sprintf("0x%02X", typ)
	}
}

// CRC16 computes CRC-16/XMODEM (poly 0x1021, init 0).
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Encode wraps a COMMAND or DATA payload in a framing packet.
func Encode(typ byte, payload []byte) []byte {
	// Packet format:
	// 0: start byte
	// 1: packet type
	// 2-3: payload length (little-endian)
	// 4-5: CRC16 over bytes 0-3 and the payload (little-endian)
	// 6+: payload

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = StartByte
	frame[1] = typ
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[HeaderSize:], payload)

	crc := CRC16(append(frame[0:4:4], payload...))
	binary.LittleEndian.PutUint16(frame[4:6], crc)

	return frame
}

// EncodeControl builds a two-byte control packet (ACK, NAK, ACK_ABORT, PING).
func EncodeControl(typ byte) []byte {
	return []byte{StartByte, typ}
}

// Decode parses a complete frame as returned by ReadFrame and verifies its CRC.
func Decode(frame []byte) (*Packet, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	if frame[0] != StartByte {
		return nil, fmt.Errorf("invalid start byte: 0x%02X", frame[0])
	}

	typ := frame[1]
	switch typ {
	case TypeAck, TypeNak, TypeAckAbort, TypePing:
		return &Packet{Type: typ}, nil

	case TypePingResponse:
		if len(frame) < PingResponseSize {
			return nil, fmt.Errorf("ping response too short: %d bytes", len(frame))
		}
		expected := binary.LittleEndian.Uint16(frame[8:10])
		if actual := CRC16(frame[:8]); actual != expected {
			return nil, fmt.Errorf("ping response CRC mismatch: expected 0x%04X, got 0x%04X", expected, actual)
		}
		return &Packet{Type: typ, Payload: frame[2:8]}, nil

	case TypeCommand, TypeData:
		if len(frame) < HeaderSize {
			return nil, fmt.Errorf("%s header too short: %d bytes", TypeName(typ), len(frame))
		}
		size := int(binary.LittleEndian.Uint16(frame[2:4]))
		if len(frame)-HeaderSize != size {
			return nil, fmt.Errorf("payload size mismatch: expected %d, have %d", size, len(frame)-HeaderSize)
		}
		payload := frame[HeaderSize:]
		expected := binary.LittleEndian.Uint16(frame[4:6])
		crcInput := make([]byte, 0, 4+size)
		crcInput = append(crcInput, frame[0:4]...)
		crcInput = append(crcInput, payload...)
		if actual := CRC16(crcInput); actual != expected {
			return nil, fmt.Errorf("%s CRC mismatch: expected 0x%04X, got 0x%04X", TypeName(typ), expected, actual)
		}
		return &Packet{Type: typ, Payload: payload}, nil
	}

	return nil, fmt.Errorf("unknown packet type: 0x%02X", typ)
}

// ReadFrame extracts one complete packet from a byte stream.
// Bytes before the first start byte are discarded. Returns the frame and
// the remaining bytes, or nil and the (trimmed) input if the frame is not
// complete yet.
func ReadFrame(data []byte) (frame []byte, remaining []byte) {
	for {
		start := -1
		for i, b := range data {
			if b == StartByte {
				start = i
				break
			}
		}
		if start == -1 {
			return nil, nil
		}
		data = data[start:]

		if len(data) < 2 {
			return nil, data
		}

		var size int
		switch data[1] {
		case TypeAck, TypeNak, TypeAckAbort, TypePing:
			size = 2
		case TypePingResponse:
			size = PingResponseSize
		case TypeCommand, TypeData:
			if len(data) < HeaderSize {
				return nil, data
			}
			size = HeaderSize + int(binary.LittleEndian.Uint16(data[2:4]))
		default:
			// Not a packet start, keep scanning
			data = data[1:]
			continue
		}

		if len(data) < size {
			return nil, data
		}
		return data[:size], data[size:]
	}
}
