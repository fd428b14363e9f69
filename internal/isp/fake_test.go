package isp

import (
	"github.com/bigbag/lpc55-isp/internal/protocol"
)

// call records one transport primitive invocation.
type call struct {
	Op    string
	Tag   protocol.CommandTag
	Args  []uint32
	Code  protocol.ResponseCode
	Data  []byte
	Count uint32
}

// fakeTransport is a scripted device: it answers ReadResponse with the
// queued codes in order and yields recv from RecvData.
type fakeTransport struct {
	calls     []call
	responses []protocol.ResponseCode
	recv      []byte

	sendCommandErr error
	sendDataErr    error
	recvErr        error
}

func newFakeTransport(responses ...protocol.ResponseCode) *fakeTransport {
	return &fakeTransport{responses: responses}
}

func (f *fakeTransport) SendCommand(tag protocol.CommandTag, args []uint32) error {
	f.calls = append(f.calls, call{Op: "SendCommand", Tag: tag, Args: append([]uint32(nil), args...)})
	return f.sendCommandErr
}

func (f *fakeTransport) ReadResponse(code protocol.ResponseCode) error {
	f.calls = append(f.calls, call{Op: "ReadResponse", Code: code})
	if len(f.responses) == 0 {
		return errNoScriptedResponse
	}
	observed := f.responses[0]
	f.responses = f.responses[1:]
	if observed != code {
		return &protocol.ResponseMismatchError{Expected: code, Observed: observed}
	}
	return nil
}

func (f *fakeTransport) SendData(data []byte) error {
	f.calls = append(f.calls, call{Op: "SendData", Data: append([]byte(nil), data...)})
	return f.sendDataErr
}

func (f *fakeTransport) RecvData(count uint32) ([]byte, error) {
	f.calls = append(f.calls, call{Op: "RecvData", Count: count})
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	n := min(int(count), len(f.recv))
	return f.recv[:n], nil
}

func (f *fakeTransport) ops() []string {
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.Op
	}
	return ops
}

type scriptError string

func (e scriptError) Error() string { return string(e) }

const errNoScriptedResponse = scriptError("no scripted response left")
