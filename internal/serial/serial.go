package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const defaultReadTimeout = 100 * time.Millisecond

// Port wraps a serial port connected to the LPC55 ISP UART.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
}

// Open opens a serial port with the specified baud rate.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Write writes data to the serial port and waits until it is transmitted.
func (p *Port) Write(data []byte) (int, error) {
	n, err := p.port.Write(data)
	if err != nil {
		return n, err
	}
	return n, p.port.Drain()
}

// ReadWithTimeout reads data with a specific timeout.
// A timeout is reported as (0, nil).
func (p *Port) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	defer p.port.SetReadTimeout(defaultReadTimeout)

	return p.port.Read(buf)
}

// Flush discards any buffered data.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// SetDTR sets the DTR signal.
func (p *Port) SetDTR(value bool) error {
	return p.port.SetDTR(value)
}

// SetRTS sets the RTS signal.
func (p *Port) SetRTS(value bool) error {
	return p.port.SetRTS(value)
}

// EnterISP resets the target into ROM ISP mode.
// Expects RTS wired to RESETN and DTR wired to the ISP pin, both through
// inverting drivers as on the LPC55 evaluation boards.
func (p *Port) EnterISP() error {
	// Hold ISP low, pulse reset
	if err := p.SetDTR(true); err != nil {
		return err
	}
	if err := p.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	// Release reset while ISP is still held, ROM samples the pin at boot
	if err := p.SetRTS(false); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	if err := p.SetDTR(false); err != nil {
		return err
	}

	// Flush any garbage from reset
	p.Flush()
	time.Sleep(50 * time.Millisecond)

	return nil
}

// HardReset pulses RESETN without holding the ISP pin, booting the
// application image.
func (p *Port) HardReset() error {
	if err := p.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := p.SetRTS(false); err != nil {
		return err
	}
	return nil
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
