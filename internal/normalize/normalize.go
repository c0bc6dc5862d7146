// Package normalize implements component D: the deterministic projection
// from a decoded AVL record onto the outbound schema the sink expects.
package normalize

import "github.com/404minds/telematics-gateway/internal/wire"

// Record is the outbound schema the Fleet API receives, one per AVL
// record, in the order the device sent them.
type Record struct {
	Timestamp  uint64   `json:"timestamp"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Speed      uint16   `json:"speed"`
	Angle      *uint16  `json:"angle"`
	Altitude   *int16   `json:"altitude"`
	Satellites *uint8   `json:"satellites"`
	Odometer   *uint64  `json:"odometer"`
	Ignition   *bool    `json:"ignition"`
}

// Batch normalizes every record in frame, preserving arrival order.
func Batch(frame *wire.AVLFrame) []Record {
	out := make([]Record, len(frame.Records))
	for i, r := range frame.Records {
		out[i] = one(r)
	}
	return out
}

func one(r wire.AVLRecord) Record {
	rec := Record{
		Timestamp: r.TimestampMS,
		Latitude:  float64(r.GPS.Latitude) / 1e7,
		Longitude: float64(r.GPS.Longitude) / 1e7,
		Speed:     r.GPS.Speed,
	}

	angle := r.GPS.Angle
	rec.Angle = &angle
	altitude := r.GPS.Altitude
	rec.Altitude = &altitude
	satellites := r.GPS.Satellites
	rec.Satellites = &satellites

	if v, ok := r.IO.Lookup(wire.IOOdometer); ok {
		rec.Odometer = &v
	}

	if v, ok := r.IO.Lookup(wire.IOIgnition); ok {
		switch v {
		case 0:
			f := false
			rec.Ignition = &f
		case 1:
			tr := true
			rec.Ignition = &tr
		}
	}

	return rec
}
