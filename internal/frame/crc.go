// internal/frame/crc.go
package frame

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 computes the reflected Modbus CRC (seed 0xFFFF, polynomial 0xA001).
// The result is appended to a frame low byte first.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// AppendCRC appends the little-endian CRC of b to b.
func AppendCRC(b []byte) []byte {
	crc := CRC16(b)
	return append(b, byte(crc), byte(crc>>8))
}

// CheckCRC reports whether the trailing two bytes of adu match the CRC of the rest.
func CheckCRC(adu []byte) bool {
	if len(adu) < 3 {
		return false
	}
	n := len(adu)
	got := uint16(adu[n-2]) | uint16(adu[n-1])<<8
	return got == CRC16(adu[:n-2])
}
