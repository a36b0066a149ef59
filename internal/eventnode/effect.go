package eventnode

import "encoding/binary"

// EffectSize is sizeof(struct ff_effect) on a 64-bit kernel.
const EffectSize = 48

// NoEffect marks an unallocated effect id. Submitting an effect with this id
// asks the kernel to allocate a fresh one and write it back.
const NoEffect int16 = -1

// Trigger mirrors struct ff_trigger.
type Trigger struct {
	Button   uint16
	Interval uint16
}

// Replay mirrors struct ff_replay.
type Replay struct {
	Length uint16
	Delay  uint16
}

// Effect mirrors struct ff_effect byte for byte. The type-specific union is
// kept as raw bytes; only the rumble layout has accessors because that is
// the only effect the daemon itself constructs. Effects relayed on behalf of
// a virtual device pass through the union untouched.
type Effect struct {
	Type      uint16
	ID        int16
	Direction uint16
	Trigger   Trigger
	Replay    Replay
	_         [2]byte
	U         [32]byte
}

// SetRumble fills the union with ff_rumble_effect parameters.
func (e *Effect) SetRumble(strong, weak uint16) {
	binary.LittleEndian.PutUint16(e.U[0:2], strong)
	binary.LittleEndian.PutUint16(e.U[2:4], weak)
}

// Rumble reads the ff_rumble_effect parameters back out of the union.
func (e *Effect) Rumble() (strong, weak uint16) {
	return binary.LittleEndian.Uint16(e.U[0:2]), binary.LittleEndian.Uint16(e.U[2:4])
}
