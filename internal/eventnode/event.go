package eventnode

import (
	"encoding/binary"
	"errors"
)

// EventSize is the size of one input_event record on a 64-bit kernel:
// a 16-byte timeval followed by type, code and value.
const EventSize = 24

// ErrShortRead is returned when a node yields fewer bytes than one
// input_event record. Recoverable: the caller logs and continues.
var ErrShortRead = errors.New("eventnode: short read")

// Event is one input_event record. Timestamps are ignored on both paths:
// the kernel fills them in on write and the relay never inspects them.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Marshal encodes the event into a zero-timestamped wire record.
func (e Event) Marshal() [EventSize]byte {
	var buf [EventSize]byte
	binary.LittleEndian.PutUint16(buf[16:18], e.Type)
	binary.LittleEndian.PutUint16(buf[18:20], e.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.Value))
	return buf
}

// UnmarshalEvent decodes one input_event record, discarding the timestamp.
func UnmarshalEvent(buf []byte) (Event, error) {
	if len(buf) < EventSize {
		return Event{}, ErrShortRead
	}
	return Event{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}
