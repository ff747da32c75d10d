package bincrc

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum returns the CRC-16/XMODEM of p (poly 0x1021, init 0, no reflection).
func Checksum(p []byte) uint16 {
	return crc16.Checksum(p, crcTable)
}
