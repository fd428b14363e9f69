package protocol

import (
	"fmt"
	"strings"
)

// CommandTag identifies a ROM bootloader command.
type CommandTag uint8

// LPC55 ROM ISP command tags
const (
	CmdFlashEraseAll    CommandTag = 0x01
	CmdFlashEraseRegion CommandTag = 0x02
	CmdReadMemory       CommandTag = 0x03
	CmdWriteMemory      CommandTag = 0x04
	CmdFillMemory       CommandTag = 0x05
	CmdGetProperty      CommandTag = 0x07
	CmdReceiveSbFile    CommandTag = 0x08
	CmdExecute          CommandTag = 0x09
	CmdCall             CommandTag = 0x0A
	CmdReset            CommandTag = 0x0B
	CmdSetProperty      CommandTag = 0x0C
	CmdConfigureMemory  CommandTag = 0x11
	CmdKeyProvision     CommandTag = 0x15
)

var commandNames = map[CommandTag]string{
	CmdFlashEraseAll:    "FlashEraseAll",
	CmdFlashEraseRegion: "FlashEraseRegion",
	CmdReadMemory:       "ReadMemory",
	CmdWriteMemory:      "WriteMemory",
	CmdFillMemory:       "FillMemory",
	CmdGetProperty:      "GetProperty",
	CmdReceiveSbFile:    "ReceiveSbFile",
	CmdExecute:          "Execute",
	CmdCall:             "Call",
	CmdReset:            "Reset",
	CmdSetProperty:      "SetProperty",
	CmdConfigureMemory:  "ConfigureMemory",
	CmdKeyProvision:     "KeyProvision",
}

func (t CommandTag) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(t))
}

// ResponseCode is the tag of a response packet sent by the device.
type ResponseCode uint8

// Response tags
const (
	RespGeneric       ResponseCode = 0xA0
	RespReadMemory    ResponseCode = 0xA3
	RespGetProperty   ResponseCode = 0xA7
	RespFlashReadOnce ResponseCode = 0xAF
	RespKeyProvision  ResponseCode = 0xB5
)

func (c ResponseCode) String() string {
	switch c {
	case RespGeneric:
		return "GenericResponse"
	case RespReadMemory:
		return "ReadMemoryResponse"
	case RespGetProperty:
		return "GetPropertyResponse"
	case RespFlashReadOnce:
		return "FlashReadOnceResponse"
	case RespKeyProvision:
		return "KeyProvisionResponse"
	default:
		return fmt.Sprintf("Response(0x%02X)", uint8(c))
	}
}

// KeyProvisionCmd is the sub-command carried in the first KeyProvision argument.
type KeyProvisionCmd uint32

const (
	KeyProvEnroll           KeyProvisionCmd = 0
	KeyProvSetUserKey       KeyProvisionCmd = 1
	KeyProvSetIntrinsicKey  KeyProvisionCmd = 2
	KeyProvWriteNonVolatile KeyProvisionCmd = 3
	KeyProvReadNonVolatile  KeyProvisionCmd = 4
	KeyProvWriteKeyStore    KeyProvisionCmd = 5
	KeyProvReadKeyStore     KeyProvisionCmd = 6
)

// KeyType selects the PUF key slot for SetUserKey / SetIntrinsicKey.
type KeyType uint32

const (
	KeySBKEK         KeyType = 3
	KeyPrinceRegion0 KeyType = 7
	KeyPrinceRegion1 KeyType = 8
	KeyPrinceRegion2 KeyType = 9
	KeyUSERKEK       KeyType = 11
	KeyUDS           KeyType = 12
)

var keyTypeNames = map[KeyType]string{
	KeySBKEK:         "SBKEK",
	KeyPrinceRegion0: "PRINCE0",
	KeyPrinceRegion1: "PRINCE1",
	KeyPrinceRegion2: "PRINCE2",
	KeyUSERKEK:       "USERKEK",
	KeyUDS:           "UDS",
}

func (k KeyType) String() string {
	if name, ok := keyTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KeyType(%d)", uint32(k))
}

// ParseKeyType converts a key type name (case-insensitive) to a KeyType.
func ParseKeyType(name string) (KeyType, error) {
	for k, n := range keyTypeNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown key type %q", name)
}

// UDSKeySize is the size in bytes of the unique device secret.
const UDSKeySize = 32

// Status codes returned in the first response parameter
const (
	StatusSuccess         uint32 = 0
	StatusFail            uint32 = 1
	StatusReadOnly        uint32 = 2
	StatusOutOfRange      uint32 = 3
	StatusInvalidArgument uint32 = 4
	StatusTimeout         uint32 = 5

	StatusFlashAlignmentError   uint32 = 101
	StatusFlashAccessError      uint32 = 103
	StatusFlashProtectionError  uint32 = 104
	StatusFlashCommandFailure   uint32 = 105
	StatusFlashUnknownProperty  uint32 = 106
	StatusFlashEraseKeyError    uint32 = 107
	StatusFlashRegionExecOnly   uint32 = 108
	StatusFlashCommandNotSupp   uint32 = 111
	StatusFlashOutOfDateCfpa    uint32 = 132
	StatusUnknownCommand        uint32 = 10000
	StatusSecurityViolation     uint32 = 10001
	StatusAbortDataPhase        uint32 = 10002
	StatusPingError             uint32 = 10003
	StatusNoResponse            uint32 = 10004
	StatusNoResponseExpected    uint32 = 10005
	StatusUnsupportedCommand    uint32 = 10006
	StatusRomLdrSectionOverrun  uint32 = 10100
	StatusRomLdrSignature       uint32 = 10101
	StatusRomLdrSectionLength   uint32 = 10102
	StatusRomLdrUnencryptedOnly uint32 = 10103
	StatusRomLdrEOFReached      uint32 = 10104
	StatusRomLdrChecksum        uint32 = 10105
	StatusRomLdrCrc32Error      uint32 = 10106
	StatusRomLdrUnknownCommand  uint32 = 10107
	StatusRomLdrIDNotFound      uint32 = 10108
	StatusRomLdrJumpReturned    uint32 = 10110
	StatusRomLdrCallFailed      uint32 = 10111
	StatusMemoryRangeInvalid    uint32 = 10200
	StatusMemoryReadFailed      uint32 = 10201
	StatusMemoryWriteFailed     uint32 = 10202
	StatusMemoryNotConfigured   uint32 = 10205
	StatusKeyStoreMarkerInvalid uint32 = 10400
	StatusKeyStoreEnrollFailed  uint32 = 10401
	StatusKeyStoreNotEnrolled   uint32 = 10403
	StatusKeyStoreStartFailed   uint32 = 10404
	StatusKeyStoreSetKeyFailed  uint32 = 10406
	StatusKeyStoreGetKeyFailed  uint32 = 10407
	StatusKeyStoreWrongSize     uint32 = 10408
)

var statusMessages = map[uint32]string{
	StatusSuccess:               "success",
	StatusFail:                  "generic failure",
	StatusReadOnly:              "read only",
	StatusOutOfRange:            "out of range",
	StatusInvalidArgument:       "invalid argument",
	StatusTimeout:               "timeout",
	StatusFlashAlignmentError:   "flash alignment error",
	StatusFlashAccessError:      "flash access error",
	StatusFlashProtectionError:  "flash protection violation",
	StatusFlashCommandFailure:   "flash command failure",
	StatusFlashUnknownProperty:  "unknown flash property",
	StatusFlashEraseKeyError:    "flash erase key error",
	StatusFlashRegionExecOnly:   "flash region is execute-only",
	StatusFlashCommandNotSupp:   "flash command not supported",
	StatusFlashOutOfDateCfpa:    "CFPA page version out of date",
	StatusUnknownCommand:        "unknown command",
	StatusSecurityViolation:     "security violation",
	StatusAbortDataPhase:        "data phase aborted",
	StatusPingError:             "ping error",
	StatusNoResponse:            "no response",
	StatusNoResponseExpected:    "no response expected",
	StatusUnsupportedCommand:    "unsupported command",
	StatusRomLdrSectionOverrun:  "SB loader section overrun",
	StatusRomLdrSignature:       "SB loader bad signature",
	StatusRomLdrSectionLength:   "SB loader bad section length",
	StatusRomLdrUnencryptedOnly: "SB loader accepts unencrypted images only",
	StatusRomLdrEOFReached:      "SB loader end of file reached",
	StatusRomLdrChecksum:        "SB loader checksum error",
	StatusRomLdrCrc32Error:      "SB loader CRC32 error",
	StatusRomLdrUnknownCommand:  "SB loader unknown command",
	StatusRomLdrIDNotFound:      "SB loader ID not found",
	StatusRomLdrJumpReturned:    "SB loader jump returned",
	StatusRomLdrCallFailed:      "SB loader call failed",
	StatusMemoryRangeInvalid:    "memory range invalid",
	StatusMemoryReadFailed:      "memory read failed",
	StatusMemoryWriteFailed:     "memory write failed",
	StatusMemoryNotConfigured:   "memory not configured",
	StatusKeyStoreMarkerInvalid: "key store marker invalid",
	StatusKeyStoreEnrollFailed:  "key store enroll failed",
	StatusKeyStoreNotEnrolled:   "key store not enrolled",
	StatusKeyStoreStartFailed:   "key store start failed",
	StatusKeyStoreSetKeyFailed:  "key store set key failed",
	StatusKeyStoreGetKeyFailed:  "key store get key failed",
	StatusKeyStoreWrongSize:     "key store wrong size",
}

// StatusMessage returns human-readable status message
func StatusMessage(status uint32) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "unknown status"
}

// HasDataOut reports whether the command is followed by a host-to-device
// data phase. The device expects the command packet flag to agree.
func HasDataOut(tag CommandTag, args []uint32) bool {
	switch tag {
	case CmdWriteMemory, CmdReceiveSbFile:
		return true
	case CmdKeyProvision:
		if len(args) == 0 {
			return false
		}
		switch KeyProvisionCmd(args[0]) {
		case KeyProvSetUserKey, KeyProvWriteKeyStore:
			return true
		}
	}
	return false
}
