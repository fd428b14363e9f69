package framing

import (
	"bytes"
	"testing"
)

func TestCRC16_CheckValue(t *testing.T) {
	result := CRC16([]byte("123456789"))
	if result != 0x31C3 {
		t.Errorf("CRC16(\"123456789\") = 0x%04X, want 0x31C3", result)
	}
}

func TestCRC16_Empty(t *testing.T) {
	if result := CRC16(nil); result != 0 {
		t.Errorf("CRC16(nil) = 0x%04X, want 0x0000", result)
	}
}

func TestEncode_Command(t *testing.T) {
	// FlashEraseAll with a single zero argument
	payload := []byte{0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	result := Encode(TypeCommand, payload)
	expected := []byte{0x5A, 0xA4, 0x08, 0x00, 0x0C, 0x22, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(result, expected) {
		t.Errorf("Encode(COMMAND) = % X, want % X", result, expected)
	}
}

func TestEncode_Data(t *testing.T) {
	result := Encode(TypeData, []byte{0x01, 0x02, 0x03})
	expected := []byte{0x5A, 0xA5, 0x03, 0x00, 0x13, 0x34, 0x01, 0x02, 0x03}
	if !bytes.Equal(result, expected) {
		t.Errorf("Encode(DATA) = % X, want % X", result, expected)
	}
}

func TestEncode_DoesNotMutatePayload(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	original := append([]byte(nil), payload...)
	Encode(TypeData, payload)
	if !bytes.Equal(payload, original) {
		t.Errorf("payload mutated: % X, want % X", payload, original)
	}
}

func TestEncodeControl(t *testing.T) {
	tests := []struct {
		typ      byte
		expected []byte
	}{
		{TypeAck, []byte{0x5A, 0xA1}},
		{TypeNak, []byte{0x5A, 0xA2}},
		{TypeAckAbort, []byte{0x5A, 0xA3}},
		{TypePing, []byte{0x5A, 0xA6}},
	}

	for _, tc := range tests {
		result := EncodeControl(tc.typ)
		if !bytes.Equal(result, tc.expected) {
			t.Errorf("EncodeControl(%s) = % X, want % X", TypeName(tc.typ), result, tc.expected)
		}
	}
}

func TestDecode_Command(t *testing.T) {
	frame := []byte{
		0x5A, 0xA4, 0x0C, 0x00, 0x66, 0xCE,
		0xA0, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	}
	pkt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if pkt.Type != TypeCommand {
		t.Errorf("Type = %s, want COMMAND", TypeName(pkt.Type))
	}
	if !bytes.Equal(pkt.Payload, frame[HeaderSize:]) {
		t.Errorf("Payload = % X, want % X", pkt.Payload, frame[HeaderSize:])
	}
}

func TestDecode_BadCRC(t *testing.T) {
	frame := []byte{0x5A, 0xA5, 0x03, 0x00, 0x13, 0x35, 0x01, 0x02, 0x03}
	if _, err := Decode(frame); err == nil {
		t.Error("Decode() with bad CRC should fail")
	}
}

func TestDecode_SizeMismatch(t *testing.T) {
	frame := []byte{0x5A, 0xA5, 0x04, 0x00, 0x13, 0x34, 0x01, 0x02, 0x03}
	if _, err := Decode(frame); err == nil {
		t.Error("Decode() with size mismatch should fail")
	}
}

func TestDecode_Control(t *testing.T) {
	for _, typ := range []byte{TypeAck, TypeNak, TypeAckAbort, TypePing} {
		pkt, err := Decode([]byte{StartByte, typ})
		if err != nil {
			t.Errorf("Decode(%s) error: %v", TypeName(typ), err)
			continue
		}
		if pkt.Type != typ || pkt.Payload != nil {
			t.Errorf("Decode(%s) = %+v", TypeName(typ), pkt)
		}
	}
}

func TestDecode_PingResponse(t *testing.T) {
	frame := []byte{0x5A, 0xA7, 0x00, 0x03, 0x01, 0x50, 0x00, 0x00, 0xFB, 0x40}
	pkt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	expected := []byte{0x00, 0x03, 0x01, 0x50, 0x00, 0x00}
	if !bytes.Equal(pkt.Payload, expected) {
		t.Errorf("Payload = % X, want % X", pkt.Payload, expected)
	}

	frame[9] ^= 0xFF
	if _, err := Decode(frame); err == nil {
		t.Error("Decode() of corrupted ping response should fail")
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := [][]byte{
		nil,
		{0x5A},
		{0x00, 0xA1},
		{0x5A, 0x42},
		{0x5A, 0xA4, 0x00},
	}
	for _, frame := range tests {
		if _, err := Decode(frame); err == nil {
			t.Errorf("Decode(% X) should fail", frame)
		}
	}
}

func TestReadFrame_Complete(t *testing.T) {
	data := []byte{0x5A, 0xA5, 0x03, 0x00, 0x13, 0x34, 0x01, 0x02, 0x03, 0x5A, 0xA1}
	frame, remaining := ReadFrame(data)
	if !bytes.Equal(frame, data[:9]) {
		t.Errorf("frame = % X, want % X", frame, data[:9])
	}
	if !bytes.Equal(remaining, []byte{0x5A, 0xA1}) {
		t.Errorf("remaining = % X, want 5A A1", remaining)
	}

	frame, remaining = ReadFrame(remaining)
	if !bytes.Equal(frame, []byte{0x5A, 0xA1}) {
		t.Errorf("frame = % X, want 5A A1", frame)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = % X, want empty", remaining)
	}
}

func TestReadFrame_Incomplete(t *testing.T) {
	tests := [][]byte{
		{0x5A},
		{0x5A, 0xA4, 0x08},
		{0x5A, 0xA5, 0x03, 0x00, 0x13, 0x34, 0x01},
		{0x5A, 0xA7, 0x00, 0x03},
	}
	for _, data := range tests {
		frame, remaining := ReadFrame(data)
		if frame != nil {
			t.Errorf("ReadFrame(% X) frame = % X, want nil", data, frame)
		}
		if !bytes.Equal(remaining, data) {
			t.Errorf("ReadFrame(% X) remaining = % X, want input", data, remaining)
		}
	}
}

func TestReadFrame_SkipsGarbage(t *testing.T) {
	data := []byte{0x00, 0xFF, 0x5A, 0x42, 0x5A, 0xA1}
	frame, remaining := ReadFrame(data)
	if !bytes.Equal(frame, []byte{0x5A, 0xA1}) {
		t.Errorf("frame = % X, want 5A A1", frame)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = % X, want empty", remaining)
	}
}

func TestReadFrame_NoStartByte(t *testing.T) {
	frame, remaining := ReadFrame([]byte{0x01, 0x02, 0x03})
	if frame != nil || remaining != nil {
		t.Errorf("ReadFrame() = % X, % X, want nil, nil", frame, remaining)
	}
}

func TestEncodeDecode_LargePayload(t *testing.T) {
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame, remaining := ReadFrame(Encode(TypeData, payload))
	if len(remaining) != 0 {
		t.Fatalf("remaining = %d bytes, want 0", len(remaining))
	}
	pkt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !bytes.Equal(pkt.Payload, payload) {
		t.Error("payload changed through Encode/Decode")
	}
}

func TestTypeName(t *testing.T) {
	if TypeName(TypeCommand) != "COMMAND" {
		t.Errorf("TypeName(COMMAND) = %q", TypeName(TypeCommand))
	}
	if TypeName(0x10) != "0x10" {
		t.Errorf("TypeName(0x10) = %q, want %q", TypeName(0x10), "0x10")
	}
}
