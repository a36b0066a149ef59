package mirror

import (
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/eventnode"
	"github.com/nerrad567/joymirror/internal/hotplug"
	"github.com/nerrad567/joymirror/internal/infrastructure/config"
	"github.com/nerrad567/joymirror/internal/joydev"
	"github.com/nerrad567/joymirror/internal/registry"
)

type sinkEvent struct {
	typ   uint16
	code  uint16
	value int32
}

// mockSink records the event stream a virtual device would deliver.
type mockSink struct {
	events  []sinkEvent
	emitErr error
}

func (m *mockSink) Emit(typ, code uint16, value int32) error {
	if m.emitErr != nil {
		return m.emitErr
	}
	m.events = append(m.events, sinkEvent{typ: typ, code: code, value: value})
	return nil
}

func (m *mockSink) Sync() error {
	m.events = append(m.events, sinkEvent{typ: eventnode.EvSyn, code: eventnode.SynReport})
	return nil
}

func testController(sink eventSink) *controller {
	c := &controller{
		sink:      sink,
		axisState: make([]int16, 8),
		btnState:  make([]int16, 8),
	}
	for i := range c.btnMap {
		c.btnMap[i] = uint16(joydev.BtnMisc + i)
	}
	for i := range c.axisMap {
		c.axisMap[i] = uint8(i)
	}
	return c
}

func testConfig(maxDevices int) *config.Config {
	return &config.Config{
		Registry: config.RegistryConfig{MaxDevices: maxDevices},
		Virtual: config.VirtualConfig{
			NamePrefix: "Mirror Joystick",
			Vendor:     0x776C,
			Product:    0x6A73,
			Version:    0x0123,
		},
		Rumble: config.RumbleConfig{StrongMagnitude: 0x8000, LengthMS: 500},
	}
}

// Every delivered update is sealed by exactly one sync marker, and the
// virtual event carries the translated code with the legacy value intact.
func TestMirrorEvent_UpdateSealedBySync(t *testing.T) {
	sink := &mockSink{}
	c := testController(sink)
	e := New(testConfig(1), nil)

	e.mirrorEvent(c, joydev.Event{Type: joydev.EventButton, Number: 1, Value: 1})
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventAxis, Number: 2, Value: -5000})
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventButton, Number: 1, Value: 0})

	want := []sinkEvent{
		{typ: eventnode.EvKey, code: joydev.BtnMisc + 1, value: 1},
		{typ: eventnode.EvSyn, code: eventnode.SynReport},
		{typ: eventnode.EvAbs, code: 2, value: -5000},
		{typ: eventnode.EvSyn, code: eventnode.SynReport},
		{typ: eventnode.EvKey, code: joydev.BtnMisc + 1, value: 0},
		{typ: eventnode.EvSyn, code: eventnode.SynReport},
	}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %+v, want %+v", sink.events, want)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, sink.events[i], want[i])
		}
	}
}

// An update that never reached the virtual device must not be sealed: a
// dangling sync marker would publish a state that was never written.
func TestMirrorEvent_FailedEmitIsNotSealed(t *testing.T) {
	sink := &mockSink{}
	c := testController(sink)
	e := New(testConfig(1), nil)

	e.mirrorEvent(c, joydev.Event{Type: joydev.EventAxis, Number: 0, Value: 100})

	sink.emitErr = unix.ENODEV
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventAxis, Number: 1, Value: 200})
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventButton, Number: 3, Value: 1})

	want := []sinkEvent{
		{typ: eventnode.EvAbs, code: 0, value: 100},
		{typ: eventnode.EvSyn, code: eventnode.SynReport},
	}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %+v, want only the first sealed update", sink.events)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, sink.events[i], want[i])
		}
	}
}

// The per-controller state tables track the last delivered value of each
// axis and button.
func TestMirrorEvent_TracksState(t *testing.T) {
	sink := &mockSink{}
	c := testController(sink)
	e := New(testConfig(1), nil)

	e.mirrorEvent(c, joydev.Event{Type: joydev.EventAxis, Number: 2, Value: -5000})
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventButton | joydev.EventInit, Number: 0, Value: 1})
	e.mirrorEvent(c, joydev.Event{Type: joydev.EventAxis, Number: 2, Value: 300})

	if got := c.axisState[2]; got != 300 {
		t.Errorf("axisState[2] = %d, want 300", got)
	}
	if got := c.btnState[0]; got != 1 {
		t.Errorf("btnState[0] = %d, want 1", got)
	}
	for i, v := range c.axisState {
		if i != 2 && v != 0 {
			t.Errorf("axisState[%d] = %d, want 0", i, v)
		}
	}
}

func TestHandleNotification_CapacityDrop(t *testing.T) {
	e := New(testConfig(1), nil)

	add := hotplug.Notification{
		Action: hotplug.ActionAdd,
		Kind:   registry.KindLegacy,
		Path:   "/dev/input/js0",
		Key:    "key-a",
	}
	if err := e.handleNotification(add); err != nil {
		t.Fatalf("handleNotification() error = %v", err)
	}

	add.Path = "/dev/input/js1"
	add.Key = "key-b"
	if err := e.handleNotification(add); err != nil {
		t.Fatalf("handleNotification() at capacity error = %v", err)
	}

	if got := e.reg.Len(); got != 1 {
		t.Errorf("registry Len() = %d, want 1", got)
	}
}

func TestHandleNotification_RemoveUnknownIsNoOp(t *testing.T) {
	e := New(testConfig(4), nil)

	remove := hotplug.Notification{
		Action: hotplug.ActionRemove,
		Kind:   registry.KindLegacy,
		Path:   "/dev/input/js0",
		Key:    "never-seen",
	}
	if err := e.handleNotification(remove); err != nil {
		t.Errorf("handleNotification() error = %v", err)
	}
}

// A sibling input node can share a controller's hardware path without ever
// being tracked; its removal must not tear the record down.
func TestHandleNotification_RemoveUntrackedSiblingIgnored(t *testing.T) {
	e := New(testConfig(4), nil)

	add := hotplug.Notification{
		Action: hotplug.ActionAdd,
		Kind:   registry.KindLegacy,
		Path:   "/dev/input/js0",
		Key:    "key-a",
	}
	if err := e.handleNotification(add); err != nil {
		t.Fatalf("handleNotification() error = %v", err)
	}

	remove := hotplug.Notification{
		Action: hotplug.ActionRemove,
		Kind:   registry.KindGeneric,
		Path:   "/dev/input/event4",
		Key:    "key-a",
	}
	if err := e.handleNotification(remove); err != nil {
		t.Fatalf("handleNotification() error = %v", err)
	}
	if got := e.reg.Len(); got != 1 {
		t.Fatalf("registry Len() = %d, sibling removal freed the record", got)
	}

	remove.Kind = registry.KindLegacy
	remove.Path = "/dev/input/js0"
	if err := e.handleNotification(remove); err != nil {
		t.Fatalf("handleNotification() error = %v", err)
	}
	if got := e.reg.Len(); got != 0 {
		t.Errorf("registry Len() = %d after tracked removal, want 0", got)
	}
}

// A controller can vanish between the udev announcement and the node open.
// The pairing must be abandoned without failing the engine.
func TestHandleNotification_ActivationOpenFailureAbandons(t *testing.T) {
	e := New(testConfig(4), nil)

	gone := t.TempDir()
	notifications := []hotplug.Notification{
		{
			Action: hotplug.ActionAdd,
			Kind:   registry.KindLegacy,
			Path:   filepath.Join(gone, "js0"),
			Key:    "key-a",
		},
		{
			Action: hotplug.ActionAdd,
			Kind:   registry.KindGeneric,
			Path:   filepath.Join(gone, "event0"),
			Key:    "key-a",
		},
	}
	for _, n := range notifications {
		if err := e.handleNotification(n); err != nil {
			t.Fatalf("handleNotification(%+v) error = %v", n, err)
		}
	}

	if got := e.reg.Len(); got != 0 {
		t.Errorf("registry Len() = %d after failed activation, want 0", got)
	}
	if len(e.byHandle) != 0 {
		t.Errorf("byHandle has %d entries after failed activation", len(e.byHandle))
	}
}
