package isp

import (
	"math"

	"github.com/bigbag/lpc55-isp/internal/protocol"
)

// SaveKeyStore writes the PUF key store to non-volatile memory
// (memory ID 0, internal flash).
func (c *Client) SaveKeyStore() error {
	args := []uint32{
		uint32(protocol.KeyProvWriteNonVolatile),
		0, // memory ID
	}

	_, err := c.Execute(protocol.CmdKeyProvision, protocol.RespGeneric, args, NoData{})
	return err
}

// Enroll runs PUF enrollment, creating a new activation code.
func (c *Client) Enroll() error {
	args := []uint32{uint32(protocol.KeyProvEnroll)}

	_, err := c.Execute(protocol.CmdKeyProvision, protocol.RespGeneric, args, NoData{})
	return err
}

// GenerateUDS has the PUF derive a 32-byte unique device secret.
func (c *Client) GenerateUDS() error {
	args := []uint32{
		uint32(protocol.KeyProvSetIntrinsicKey),
		uint32(protocol.KeyUDS),
		protocol.UDSKeySize,
	}

	_, err := c.Execute(protocol.CmdKeyProvision, protocol.RespGeneric, args, NoData{})
	return err
}

// WriteKeyStore loads a complete key store image into the device.
func (c *Client) WriteKeyStore(keystore []byte) error {
	args := []uint32{uint32(protocol.KeyProvWriteKeyStore)}

	_, err := c.Execute(protocol.CmdKeyProvision, protocol.RespKeyProvision, args, SendPayload{
		Code: protocol.RespGeneric,
		Data: keystore,
	})
	return err
}

// ReceiveSbFile streams a secure-boot (SB2) file to the ROM loader.
func (c *Client) ReceiveSbFile(sbFile []byte) error {
	size, err := lengthArg(protocol.CmdReceiveSbFile, "file", sbFile)
	if err != nil {
		return err
	}

	_, err = c.Execute(protocol.CmdReceiveSbFile, protocol.RespGeneric, []uint32{size}, SendPayload{
		Code: protocol.RespGeneric,
		Data: sbFile,
	})
	return err
}

// SetUserKey wraps key with the PUF and stores it in the keyType slot.
func (c *Client) SetUserKey(keyType protocol.KeyType, key []byte) error {
	size, err := lengthArg(protocol.CmdKeyProvision, "key", key)
	if err != nil {
		return err
	}

	args := []uint32{
		uint32(protocol.KeyProvSetUserKey),
		uint32(keyType),
		size,
	}

	_, err = c.Execute(protocol.CmdKeyProvision, protocol.RespKeyProvision, args, SendPayload{
		Code: protocol.RespGeneric,
		Data: key,
	})
	return err
}

// ReadMemory reads count bytes starting at address.
func (c *Client) ReadMemory(address, count uint32) ([]byte, error) {
	args := []uint32{address, count, 0}

	data, err := c.Execute(protocol.CmdReadMemory, protocol.RespReadMemory, args, ReceivePayload{
		Code:   protocol.RespGeneric,
		Length: count,
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &CommandError{
			Tag:   protocol.CmdReadMemory,
			Stage: StageDataPhase,
			Kind:  ErrInternal,
			Err:   errMissingPayload,
		}
	}
	return data, nil
}

// WriteMemory writes data starting at address.
func (c *Client) WriteMemory(address uint32, data []byte) error {
	size, err := lengthArg(protocol.CmdWriteMemory, "data", data)
	if err != nil {
		return err
	}

	args := []uint32{address, size, 0}

	_, err = c.Execute(protocol.CmdWriteMemory, protocol.RespGeneric, args, SendPayload{
		Code: protocol.RespGeneric,
		Data: data,
	})
	return err
}

// FlashEraseAll erases the whole internal flash.
func (c *Client) FlashEraseAll() error {
	args := []uint32{0} // internal flash

	_, err := c.Execute(protocol.CmdFlashEraseAll, protocol.RespGeneric, args, NoData{})
	return err
}

// lengthArg converts a buffer length to a 32-bit argument.
func lengthArg(tag protocol.CommandTag, name string, buf []byte) (uint32, error) {
	return lengthValue(tag, name, len(buf))
}

func lengthValue(tag protocol.CommandTag, name string, n int) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, argumentError(tag, "%s length %d does not fit in a 32-bit argument", name, n)
	}
	return uint32(n), nil
}
