package crc

import (
	"fmt"
	"strings"

	"github.com/snksoft/crc"
)

// Crc16_Modbus computes the CRC-16/MODBUS of data (init 0xFFFF, reflected
// 0x8005 polynomial). Binary tracker frames append it little-endian.
func Crc16_Modbus(data []byte) uint16 {
	checksum := crc.CalculateCRC(&crc.Parameters{Width: 16, Polynomial: 0x8005, ReflectIn: true, ReflectOut: true, Init: 0xFFFF, FinalXor: 0x0000}, data)
	return uint16(checksum)
}

// Xor8 computes the single-byte XOR checksum of data.
func Xor8(data []byte) uint8 {
	var cs uint8
	for _, b := range data {
		cs ^= b
	}
	return cs
}

// Xor8Hex formats the XOR checksum of s as two uppercase hex digits, the way
// ASCII trackers append it after a '*' or ';' delimiter.
func Xor8Hex(s string) string {
	return fmt.Sprintf("%02X", Xor8([]byte(s)))
}

// VerifyXor8Hex reports whether want, a two-digit hex checksum field, matches
// the XOR checksum of s. Comparison is case-insensitive.
func VerifyXor8Hex(s string, want string) bool {
	return strings.EqualFold(Xor8Hex(s), want)
}

// Taip computes the TAIP checksum of msg: XOR of the 7-bit values of every
// character before the '*' marker, as two uppercase hex digits.
func Taip(msg string) string {
	var cs byte
	for i := 0; i < len(msg); i++ {
		if msg[i] == '*' {
			break
		}
		cs ^= msg[i] & 0x7F
	}
	return fmt.Sprintf("%02X", cs)
}
