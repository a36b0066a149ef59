package eventnode

// Event types from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvAbs = 0x03
	EvFF  = 0x15
)

// Synchronization markers.
const (
	SynReport = 0
)

// Controller button-code range. Codes outside it belong to keyboards, mice
// and the like and are never mirrored.
const (
	BtnMisc   = 0x100
	BtnGearUp = 0x151
)

// Force-feedback effect codes.
const (
	FFRumble     = 0x50
	FFPeriodic   = 0x51
	FFConstant   = 0x52
	FFSpring     = 0x53
	FFFriction   = 0x54
	FFDamper     = 0x55
	FFInertia    = 0x56
	FFRamp       = 0x57
	FFEffectMin  = FFRumble
	FFGain       = 0x60
	FFAutocenter = 0x61
	FFMax        = 0x7F
	FFCnt        = FFMax + 1
)

// Bounds of the capability code spaces.
const (
	KeyMax   = 0x2FF
	AbsMax   = 0x3F
	AbsCount = AbsMax + 1
)

// GainMax is the full-scale value of an FF_GAIN event.
const GainMax = 0xFFFF
