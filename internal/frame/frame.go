// internal/frame/frame.go
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/goburrow/modbus"
)

// ---- PROTOCOL CONSTANTS ----

const (
	FuncReadHoldingRegisters uint8 = modbus.FuncCodeReadHoldingRegisters
	FuncWriteSingleRegister  uint8 = modbus.FuncCodeWriteSingleRegister
)

// Device addresses outside this range are reserved by the protocol.
// Builders do not reject them; callers validate upstream.
const (
	AddressMin uint8 = 1
	AddressMax uint8 = 247
)

// RequestSize is the length of every request this package builds.
const RequestSize = 8

// WriteResponseSize is the length of a write-single-register echo.
const WriteResponseSize = 8

// ---- REGISTER MAP ----

const (
	RegDistances  uint16 = 0x0106 // 4-register block, one per channel
	RegAddress    uint16 = 0x0200
	RegConfigMode uint16 = 0x0207
	RegAngle      uint16 = 0x0208 // 1..4
	RegDenoise    uint16 = 0x021A // 1..5
)

// DistanceThreshold is the largest plausible reading in millimetres.
const DistanceThreshold uint16 = 2000

// Frame is one request ADU: address, function, 4 payload bytes, CRC (LE).
type Frame []byte

func (f Frame) Address() uint8  { return f[0] }
func (f Frame) Function() uint8 { return f[1] }

// Register is the first payload word (start register or target register).
func (f Frame) Register() uint16 { return binary.BigEndian.Uint16(f[2:4]) }

// Value is the second payload word (register count or written value).
func (f Frame) Value() uint16 { return binary.BigEndian.Uint16(f[4:6]) }

func build(addr, fc uint8, a, b uint16) Frame {
	f := make([]byte, 6, RequestSize)
	f[0] = addr
	f[1] = fc
	binary.BigEndian.PutUint16(f[2:4], a)
	binary.BigEndian.PutUint16(f[4:6], b)
	return AppendCRC(f)
}

// BuildReadRequest builds a read-holding-registers (0x03) request.
func BuildReadRequest(addr uint8, start, count uint16) Frame {
	return build(addr, FuncReadHoldingRegisters, start, count)
}

// BuildWriteRequest builds a write-single-register (0x06) request.
func BuildWriteRequest(addr uint8, reg, value uint16) Frame {
	return build(addr, FuncWriteSingleRegister, reg, value)
}

// ReadResponseSize is the exact length of a read response for count registers.
func ReadResponseSize(count uint16) int {
	return 3 + 2*int(count) + 2
}

// ResponseSize returns the expected response length for a request.
func ResponseSize(req []byte) (int, error) {
	if len(req) < 6 {
		return 0, fmt.Errorf("frame: request too short (%d bytes)", len(req))
	}
	f := Frame(req)
	switch f.Function() {
	case FuncReadHoldingRegisters:
		return ReadResponseSize(f.Value()), nil
	case FuncWriteSingleRegister:
		return WriteResponseSize, nil
	default:
		return 0, fmt.Errorf("frame: unsupported function code 0x%02x", f.Function())
	}
}

// ValidateWrite checks a write response: at least 6 bytes, and the first 6
// echo the request's address, function, register and value.
func ValidateWrite(req Frame, resp []byte) error {
	if len(resp) < 6 {
		return invalid("write echo too short: %d bytes", len(resp))
	}
	for i := 0; i < 6; i++ {
		if resp[i] != req[i] {
			return invalid("write echo mismatch at byte %d: got=0x%02x want=0x%02x", i, resp[i], req[i])
		}
	}
	return nil
}

// ValidateRead checks a read response shape against its request.
// The response CRC is only checked when checkCRC is set.
func ValidateRead(req Frame, resp []byte, checkCRC bool) error {
	want := ReadResponseSize(req.Value())
	if len(resp) != want {
		return invalid("read length: got=%d want=%d", len(resp), want)
	}
	if resp[0] != req.Address() {
		return invalid("read address: got=%d want=%d", resp[0], req.Address())
	}
	if resp[1] != req.Function() {
		return invalid("read function: got=0x%02x want=0x%02x", resp[1], req.Function())
	}
	if checkCRC && !CheckCRC(resp) {
		return invalid("read crc mismatch")
	}
	return nil
}

// ValidateResponse reports whether resp is an acceptable answer to req.
func ValidateResponse(req Frame, resp []byte) bool {
	switch req.Function() {
	case FuncWriteSingleRegister:
		return ValidateWrite(req, resp) == nil
	case FuncReadHoldingRegisters:
		return ValidateRead(req, resp, false) == nil
	default:
		return false
	}
}

// DecodeRegisters unpacks count big-endian registers from a read response.
// It assumes the response already passed ValidateRead.
func DecodeRegisters(resp []byte, count uint16) []uint16 {
	out := make([]uint16, count)
	for i := 0; i < int(count); i++ {
		out[i] = uint16(resp[3+2*i])<<8 | uint16(resp[4+2*i])
	}
	return out
}

// Clamp maps readings above threshold to 0 (no target).
func Clamp(v, threshold uint16) uint16 {
	if v > threshold {
		return 0
	}
	return v
}
