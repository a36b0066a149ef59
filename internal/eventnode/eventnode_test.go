package eventnode

import (
	"errors"
	"testing"
	"unsafe"
)

func TestEffectLayout(t *testing.T) {
	// The struct crosses an ioctl boundary; its layout is the kernel ABI.
	if size := unsafe.Sizeof(Effect{}); size != EffectSize {
		t.Fatalf("sizeof(Effect) = %d, want %d", size, EffectSize)
	}

	var e Effect
	if off := unsafe.Offsetof(e.Trigger); off != 6 {
		t.Errorf("offsetof(Trigger) = %d, want 6", off)
	}
	if off := unsafe.Offsetof(e.Replay); off != 10 {
		t.Errorf("offsetof(Replay) = %d, want 10", off)
	}
	if off := unsafe.Offsetof(e.U); off != 16 {
		t.Errorf("offsetof(U) = %d, want 16", off)
	}
}

func TestEffect_Rumble(t *testing.T) {
	var e Effect
	e.SetRumble(0x8000, 0x1234)

	strong, weak := e.Rumble()
	if strong != 0x8000 || weak != 0x1234 {
		t.Errorf("Rumble() = %#x/%#x, want 0x8000/0x1234", strong, weak)
	}
}

func TestEventRoundTrip(t *testing.T) {
	in := Event{Type: EvFF, Code: FFGain, Value: 0x4000}

	buf := in.Marshal()
	out, err := UnmarshalEvent(buf[:])
	if err != nil {
		t.Fatalf("UnmarshalEvent() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestUnmarshalEvent_Short(t *testing.T) {
	_, err := UnmarshalEvent(make([]byte, EventSize-1))
	if !errors.Is(err, ErrShortRead) {
		t.Errorf("UnmarshalEvent() error = %v, want ErrShortRead", err)
	}
}

func TestUnmarshalEvent_NegativeValue(t *testing.T) {
	in := Event{Type: EvAbs, Code: 0, Value: -32768}

	buf := in.Marshal()
	out, err := UnmarshalEvent(buf[:])
	if err != nil {
		t.Fatalf("UnmarshalEvent() error = %v", err)
	}
	if out.Value != -32768 {
		t.Errorf("Value = %d, want -32768", out.Value)
	}
}
