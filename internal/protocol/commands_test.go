package protocol

import (
	"testing"
)

func TestCommandTag_String(t *testing.T) {
	tests := []struct {
		tag      CommandTag
		expected string
	}{
		{CmdFlashEraseAll, "FlashEraseAll"},
		{CmdReadMemory, "ReadMemory"},
		{CmdWriteMemory, "WriteMemory"},
		{CmdReceiveSbFile, "ReceiveSbFile"},
		{CmdKeyProvision, "KeyProvision"},
		{CommandTag(0x7F), "Command(0x7F)"},
	}

	for _, tc := range tests {
		result := tc.tag.String()
		if result != tc.expected {
			t.Errorf("CommandTag(0x%02X).String() = %q, want %q", uint8(tc.tag), result, tc.expected)
		}
	}
}

func TestResponseCode_String(t *testing.T) {
	tests := []struct {
		code     ResponseCode
		expected string
	}{
		{RespGeneric, "GenericResponse"},
		{RespReadMemory, "ReadMemoryResponse"},
		{RespKeyProvision, "KeyProvisionResponse"},
		{ResponseCode(0x01), "Response(0x01)"},
	}

	for _, tc := range tests {
		result := tc.code.String()
		if result != tc.expected {
			t.Errorf("ResponseCode(0x%02X).String() = %q, want %q", uint8(tc.code), result, tc.expected)
		}
	}
}

func TestStatusMessage_KnownCodes(t *testing.T) {
	tests := []struct {
		status   uint32
		expected string
	}{
		{StatusSuccess, "success"},
		{StatusFail, "generic failure"},
		{StatusOutOfRange, "out of range"},
		{StatusFlashAlignmentError, "flash alignment error"},
		{StatusUnknownCommand, "unknown command"},
		{StatusSecurityViolation, "security violation"},
		{StatusRomLdrSignature, "SB loader bad signature"},
		{StatusKeyStoreNotEnrolled, "key store not enrolled"},
	}

	for _, tc := range tests {
		result := StatusMessage(tc.status)
		if result != tc.expected {
			t.Errorf("StatusMessage(%d) = %q, want %q", tc.status, result, tc.expected)
		}
	}
}

func TestStatusMessage_Unknown(t *testing.T) {
	for _, status := range []uint32{6, 99, 10999, 0xFFFFFFFF} {
		result := StatusMessage(status)
		if result != "unknown status" {
			t.Errorf("StatusMessage(%d) = %q, want %q", status, result, "unknown status")
		}
	}
}

func TestParseKeyType(t *testing.T) {
	tests := []struct {
		name     string
		expected KeyType
	}{
		{"UDS", KeyUDS},
		{"uds", KeyUDS},
		{"SBKEK", KeySBKEK},
		{"UserKek", KeyUSERKEK},
		{"PRINCE1", KeyPrinceRegion1},
	}

	for _, tc := range tests {
		result, err := ParseKeyType(tc.name)
		if err != nil {
			t.Errorf("ParseKeyType(%q) error: %v", tc.name, err)
			continue
		}
		if result != tc.expected {
			t.Errorf("ParseKeyType(%q) = %v, want %v", tc.name, result, tc.expected)
		}
	}
}

func TestParseKeyType_Unknown(t *testing.T) {
	if _, err := ParseKeyType("OTP"); err == nil {
		t.Error("ParseKeyType(\"OTP\") should fail")
	}
}

func TestKeyType_String(t *testing.T) {
	if KeyUDS.String() != "UDS" {
		t.Errorf("KeyUDS.String() = %q, want %q", KeyUDS.String(), "UDS")
	}
	if KeyType(42).String() != "KeyType(42)" {
		t.Errorf("KeyType(42).String() = %q, want %q", KeyType(42).String(), "KeyType(42)")
	}
}

func TestHasDataOut(t *testing.T) {
	tests := []struct {
		name     string
		tag      CommandTag
		args     []uint32
		expected bool
	}{
		{"write memory", CmdWriteMemory, []uint32{0x2000, 8, 0}, true},
		{"receive sb file", CmdReceiveSbFile, []uint32{1024}, true},
		{"read memory", CmdReadMemory, []uint32{0x1000, 16, 0}, false},
		{"erase all", CmdFlashEraseAll, []uint32{0}, false},
		{"set user key", CmdKeyProvision, []uint32{uint32(KeyProvSetUserKey), uint32(KeyUDS), 32}, true},
		{"write key store", CmdKeyProvision, []uint32{uint32(KeyProvWriteKeyStore)}, true},
		{"enroll", CmdKeyProvision, []uint32{uint32(KeyProvEnroll)}, false},
		{"save key store", CmdKeyProvision, []uint32{uint32(KeyProvWriteNonVolatile), 0}, false},
		{"key provision without args", CmdKeyProvision, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := HasDataOut(tc.tag, tc.args)
			if result != tc.expected {
				t.Errorf("HasDataOut(%s, %v) = %v, want %v", tc.tag, tc.args, result, tc.expected)
			}
		})
	}
}
