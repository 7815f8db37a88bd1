// internal/frame/packager.go
package frame

import (
	"fmt"

	"github.com/goburrow/modbus"
)

// Packager implements modbus.Packager for RTU frames addressed to one device.
// Unlike the polling path it always verifies the response CRC.
type Packager struct {
	Address uint8
}

var _ modbus.Packager = (*Packager)(nil)

// Encode wraps a PDU into address + PDU + CRC.
func (p *Packager) Encode(pdu *modbus.ProtocolDataUnit) ([]byte, error) {
	n := 2 + len(pdu.Data) + 2
	if n > 256 {
		return nil, fmt.Errorf("frame: adu length %d exceeds 256", n)
	}
	adu := make([]byte, 0, n)
	adu = append(adu, p.Address, pdu.FunctionCode)
	adu = append(adu, pdu.Data...)
	return AppendCRC(adu), nil
}

// Verify checks the response is long enough and comes from the addressed device.
func (p *Packager) Verify(aduRequest, aduResponse []byte) error {
	if len(aduResponse) < 5 {
		return invalid("adu too short: %d bytes", len(aduResponse))
	}
	if aduResponse[0] != aduRequest[0] {
		return invalid("adu address: got=%d want=%d", aduResponse[0], aduRequest[0])
	}
	return nil
}

// Decode checks the CRC and strips address and CRC.
func (p *Packager) Decode(adu []byte) (*modbus.ProtocolDataUnit, error) {
	if !CheckCRC(adu) {
		return nil, invalid("adu crc mismatch")
	}
	return &modbus.ProtocolDataUnit{
		FunctionCode: adu[1],
		Data:         adu[2 : len(adu)-2],
	}, nil
}
