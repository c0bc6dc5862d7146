package wire

// Well-known permanent I/O element ids referenced by the normalizer. Taken
// from Teltonika's public FMxxx I/O element catalog; values cross-checked
// against the pack's own FMxxx id tables.
const (
	IODigitalInput1  uint16 = 1
	IODigitalInput2  uint16 = 2
	IODigitalInput3  uint16 = 3
	IOExternalVolt   uint16 = 66
	IOBatteryVoltage uint16 = 67
	IOGNSSStatus     uint16 = 69
	IOOdometer       uint16 = 199
	IOMovement       uint16 = 240
	IOIgnition       uint16 = 239
)
