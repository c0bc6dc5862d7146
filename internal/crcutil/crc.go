// Package crcutil wraps github.com/snksoft/crc with the parameters
// Teltonika's Codec 8/8E documentation calls CRC-16/IBM: polynomial 0x8005
// (0xA001 in its reflected form), init 0, both in and out reflected.
package crcutil

import "github.com/snksoft/crc"

var teltonikaParams = &crc.Parameters{
	Width:      16,
	Polynomial: 0x8005,
	ReflectIn:  true,
	ReflectOut: true,
	Init:       0x0000,
	FinalXor:   0x0000,
}

// IBM computes CRC-16/IBM over data, matching the checksum Teltonika
// devices append to the end of an AVL data field.
func IBM(data []byte) uint16 {
	return uint16(crc.CalculateCRC(teltonikaParams, data))
}
