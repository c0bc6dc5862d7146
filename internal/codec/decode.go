// Package codec implements component B: a pure, allocation-conscious
// decoder over a byte slice and the session's current authentication
// phase. It never touches a socket and never blocks — per the
// specification, decoding is CPU-bound and must not suspend mid-frame.
package codec

import (
	"encoding/binary"

	"github.com/404minds/telematics-gateway/internal/crcutil"
	"github.com/404minds/telematics-gateway/internal/ingesterr"
	"github.com/404minds/telematics-gateway/internal/wire"
)

// Phase is the subset of session state the decoder needs to know which
// frame kind is legal next. It mirrors, but is not, the session package's
// state machine — the decoder has no business depending on the session
// package, only the other way around.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticated
)

// Kind discriminates a Result.
type Kind int

const (
	KindIncomplete Kind = iota
	KindConsumed
	KindFault
)

// Result is the outcome of one Decode call. Exactly one of Login/AVL is set
// when Kind == KindConsumed; Fault is set when Kind == KindFault.
type Result struct {
	Kind     Kind
	Consumed int
	Login    *wire.LoginFrame
	AVL      *wire.AVLFrame
	Fault    error
}

func incomplete() Result { return Result{Kind: KindIncomplete} }

func fault(err error) Result { return Result{Kind: KindFault, Fault: err} }

// Decode inspects buf and either consumes one whole frame, reports that
// more bytes are needed, or reports a fault. It never consumes a partial
// frame and never mutates buf.
func Decode(buf []byte, phase Phase) Result {
	if phase == PhaseUnauthenticated {
		return decodeLogin(buf)
	}
	return decodeAVL(buf)
}

func decodeLogin(buf []byte) Result {
	if len(buf) < 2 {
		return incomplete()
	}
	length := binary.BigEndian.Uint16(buf[0:2])
	if length != 15 {
		return fault(ingesterr.FaultBadLogin)
	}
	if len(buf) < 2+int(length) {
		return incomplete()
	}
	imeiBytes := buf[2 : 2+length]
	for _, b := range imeiBytes {
		if b < '0' || b > '9' {
			return fault(ingesterr.FaultBadLogin)
		}
	}
	return Result{
		Kind:     KindConsumed,
		Consumed: 2 + int(length),
		Login:    &wire.LoginFrame{IMEI: string(imeiBytes)},
	}
}

const (
	maxDataLength = 65528
	avlHeaderLen  = 8 // 4 preamble + 4 data length
	crcTrailerLen = 4
)

func decodeAVL(buf []byte) Result {
	if len(buf) < avlHeaderLen {
		return incomplete()
	}
	for _, b := range buf[0:4] {
		if b != 0x00 {
			return fault(ingesterr.FaultBadPreamble)
		}
	}
	dataLength := binary.BigEndian.Uint32(buf[4:8])
	if dataLength == 0 || dataLength > maxDataLength {
		return fault(ingesterr.FaultBadLength)
	}

	total := avlHeaderLen + int(dataLength) + crcTrailerLen
	if len(buf) < total {
		return incomplete()
	}

	dataField := buf[avlHeaderLen : avlHeaderLen+int(dataLength)]

	codecByte := dataField[0]
	codec := wire.CodecID(codecByte)
	if codec != wire.Codec8 && codec != wire.Codec8E {
		return fault(ingesterr.FaultBadCodec)
	}

	idWidth := 1
	if codec == wire.Codec8E {
		idWidth = 2
	}

	// record_count_1/2 are always one byte, in both Codec 8 and 8E; only
	// the per-record id/count fields widen under 8E.
	cursor := 1
	count1, n, ok := readCount(dataField, cursor, 1)
	if !ok {
		return fault(ingesterr.FaultBadRecordCount)
	}
	cursor += n

	records := make([]wire.AVLRecord, 0, count1)
	for i := uint32(0); i < count1; i++ {
		rec, n, ok := decodeRecord(dataField, cursor, idWidth)
		if !ok {
			return fault(ingesterr.FaultBadRecordCount)
		}
		records = append(records, rec)
		cursor += n
	}

	count2, n, ok := readCount(dataField, cursor, 1)
	if !ok {
		return fault(ingesterr.FaultBadRecordCount)
	}
	cursor += n

	if count1 != count2 || cursor != len(dataField) {
		return fault(ingesterr.FaultBadRecordCount)
	}

	want := crcutil.IBM(dataField)
	gotU32 := binary.BigEndian.Uint32(buf[avlHeaderLen+int(dataLength):])
	if uint16(gotU32) != want || gotU32>>16 != 0 {
		return fault(ingesterr.FaultBadCrc)
	}

	return Result{
		Kind:     KindConsumed,
		Consumed: total,
		AVL:      &wire.AVLFrame{Codec: codec, Records: records},
	}
}

// readCount reads a record/IO count field, 1 or 2 bytes wide depending on
// the codec, returning false if the field doesn't fit in data.
func readCount(data []byte, at, width int) (uint32, int, bool) {
	if at+width > len(data) {
		return 0, 0, false
	}
	if width == 1 {
		return uint32(data[at]), 1, true
	}
	return uint32(binary.BigEndian.Uint16(data[at : at+2])), 2, true
}

func readID(data []byte, at, width int) (uint16, int, bool) {
	if at+width > len(data) {
		return 0, 0, false
	}
	if width == 1 {
		return uint16(data[at]), 1, true
	}
	return binary.BigEndian.Uint16(data[at : at+2]), 2, true
}

// decodeRecord parses one AVL record starting at offset `at` in data,
// returning the number of bytes consumed.
func decodeRecord(data []byte, at, idWidth int) (wire.AVLRecord, int, bool) {
	start := at
	if at+8+1 > len(data) {
		return wire.AVLRecord{}, 0, false
	}
	ts := binary.BigEndian.Uint64(data[at : at+8])
	at += 8
	priority := data[at]
	at++

	gps, n, ok := decodeGPS(data, at)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	eventID, n, ok := readID(data, at, idWidth)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	total, n, ok := readCount(data, at, idWidth)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	io := wire.IOElements{EventID: eventID, Total: uint16(total)}

	n, ok = decodeFixedBlock(data, at, idWidth, 1, &io.OneByte)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	n, ok = decodeFixedBlock(data, at, idWidth, 2, &io.TwoByte)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	n, ok = decodeFixedBlock(data, at, idWidth, 4, &io.FourByte)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	n, ok = decodeFixedBlock(data, at, idWidth, 8, &io.EightByte)
	if !ok {
		return wire.AVLRecord{}, 0, false
	}
	at += n

	if idWidth == 2 {
		n, ok = decodeVariableBlock(data, at, idWidth, &io.Variable)
		if !ok {
			return wire.AVLRecord{}, 0, false
		}
		at += n
	}

	rec := wire.AVLRecord{
		TimestampMS: ts,
		Priority:    priority,
		GPS:         gps,
		IO:          io,
	}
	return rec, at - start, true
}

func decodeGPS(data []byte, at int) (wire.GPSElement, int, bool) {
	const gpsLen = 4 + 4 + 2 + 2 + 1 + 2
	if at+gpsLen > len(data) {
		return wire.GPSElement{}, 0, false
	}
	gps := wire.GPSElement{
		Longitude:  int32(binary.BigEndian.Uint32(data[at : at+4])),
		Latitude:   int32(binary.BigEndian.Uint32(data[at+4 : at+8])),
		Altitude:   int16(binary.BigEndian.Uint16(data[at+8 : at+10])),
		Angle:      binary.BigEndian.Uint16(data[at+10 : at+12]),
		Satellites: data[at+12],
		Speed:      binary.BigEndian.Uint16(data[at+13 : at+15]),
	}
	return gps, gpsLen, true
}

// decodeFixedBlock reads one count-then-pairs I/O block of the given value
// width (1, 2, 4, or 8 bytes) into a freshly allocated map assigned to dst.
func decodeFixedBlock(data []byte, at, idWidth, valWidth int, dst interface{}) (int, bool) {
	start := at
	count, n, ok := readCount(data, at, idWidth)
	if !ok {
		return 0, false
	}
	at += n

	switch d := dst.(type) {
	case *map[uint16]uint8:
		m := make(map[uint16]uint8, count)
		for i := uint32(0); i < count; i++ {
			id, n, ok := readID(data, at, idWidth)
			if !ok || at+n+valWidth > len(data) {
				return 0, false
			}
			at += n
			m[id] = data[at]
			at += valWidth
		}
		*d = m
	case *map[uint16]uint16:
		m := make(map[uint16]uint16, count)
		for i := uint32(0); i < count; i++ {
			id, n, ok := readID(data, at, idWidth)
			if !ok || at+n+valWidth > len(data) {
				return 0, false
			}
			at += n
			m[id] = binary.BigEndian.Uint16(data[at : at+valWidth])
			at += valWidth
		}
		*d = m
	case *map[uint16]uint32:
		m := make(map[uint16]uint32, count)
		for i := uint32(0); i < count; i++ {
			id, n, ok := readID(data, at, idWidth)
			if !ok || at+n+valWidth > len(data) {
				return 0, false
			}
			at += n
			m[id] = binary.BigEndian.Uint32(data[at : at+valWidth])
			at += valWidth
		}
		*d = m
	case *map[uint16]uint64:
		m := make(map[uint16]uint64, count)
		for i := uint32(0); i < count; i++ {
			id, n, ok := readID(data, at, idWidth)
			if !ok || at+n+valWidth > len(data) {
				return 0, false
			}
			at += n
			m[id] = binary.BigEndian.Uint64(data[at : at+valWidth])
			at += valWidth
		}
		*d = m
	}
	return at - start, true
}

// decodeVariableBlock reads the Codec 8E-only fifth I/O block: count then
// count x (id, length, bytes).
func decodeVariableBlock(data []byte, at, idWidth int, dst *map[uint16][]byte) (int, bool) {
	start := at
	count, n, ok := readCount(data, at, idWidth)
	if !ok {
		return 0, false
	}
	at += n

	m := make(map[uint16][]byte, count)
	for i := uint32(0); i < count; i++ {
		id, n, ok := readID(data, at, idWidth)
		if !ok {
			return 0, false
		}
		at += n
		length, n, ok := readCount(data, at, 2)
		if !ok {
			return 0, false
		}
		at += n
		if at+int(length) > len(data) {
			return 0, false
		}
		buf := make([]byte, length)
		copy(buf, data[at:at+int(length)])
		m[id] = buf
		at += int(length)
	}
	*dst = m
	return at - start, true
}
