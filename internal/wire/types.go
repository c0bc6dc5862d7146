// Package wire holds the decoded Codec 8/8E record model: the types the
// decoder produces before normalization. Shared between both codec widths
// rather than duplicated per width, since the only difference between
// Codec 8 and Codec 8E is the size of a handful of integer fields and the
// presence of a fifth, variable-length I/O block.
package wire

// CodecID identifies which Teltonika AVL codec framed a data packet.
type CodecID uint8

const (
	Codec8  CodecID = 0x08
	Codec8E CodecID = 0x8E
)

// GPSElement is the fixed-layout GPS portion of an AVL record.
type GPSElement struct {
	Longitude  int32
	Latitude   int32
	Altitude   int16
	Angle      uint16
	Satellites uint8
	Speed      uint16
}

// IOElements holds the four fixed-width I/O blocks every AVL record carries,
// plus the Codec 8E variable-length block (empty/nil under Codec 8).
type IOElements struct {
	EventID  uint16
	Total    uint16
	OneByte  map[uint16]uint8
	TwoByte  map[uint16]uint16
	FourByte map[uint16]uint32
	EightByte map[uint16]uint64
	Variable  map[uint16][]byte
}

// Lookup returns the raw value for io id from whichever of the four
// fixed-width blocks holds it, and whether it was found at all. Devices are
// not guaranteed to keep a given I/O id in a fixed width across firmware
// revisions, so normalization never assumes the block. The Codec 8E
// variable-length block is not searched.
func (e IOElements) Lookup(id uint16) (uint64, bool) {
	if v, ok := e.OneByte[id]; ok {
		return uint64(v), true
	}
	if v, ok := e.TwoByte[id]; ok {
		return uint64(v), true
	}
	if v, ok := e.FourByte[id]; ok {
		return uint64(v), true
	}
	if v, ok := e.EightByte[id]; ok {
		return v, true
	}
	return 0, false
}

// AVLRecord is one decoded position fix.
type AVLRecord struct {
	TimestampMS uint64
	Priority    uint8
	GPS         GPSElement
	IO          IOElements
}

// AVLFrame is a fully decoded, CRC-validated Codec 8/8E data packet.
type AVLFrame struct {
	Codec   CodecID
	Records []AVLRecord
}

// LoginFrame is a decoded IMEI login handshake.
type LoginFrame struct {
	IMEI string
}
