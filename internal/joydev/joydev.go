package joydev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/devnode"
	"github.com/nerrad567/joymirror/internal/ioc"
)

// Code-space bounds shared with the generic interface.
const (
	// AbsCount is the number of absolute-axis codes (ABS_CNT).
	AbsCount = 0x40

	// BtnMisc is the first code of the controller button range (BTN_MISC).
	BtnMisc = 0x100

	// KeyMax is the highest key code (KEY_MAX).
	KeyMax = 0x2FF

	// buttonMapSize is the number of entries in the kernel's button map
	// (KEY_MAX - BTN_MISC + 1).
	buttonMapSize = KeyMax - BtnMisc + 1
)

// eventSize is the fixed size of one js_event record on the wire.
const eventSize = 8

// Event type codes from linux/joystick.h.
const (
	EventButton = 0x01
	EventAxis   = 0x02
	EventInit   = 0x80
)

// joydev ioctl requests.
var (
	reqAxes      = ioc.IOR('j', 0x11, 1)
	reqButtons   = ioc.IOR('j', 0x12, 1)
	reqAxisMap   = ioc.IOR('j', 0x32, AbsCount)
	reqButtonMap = ioc.IOR('j', 0x34, 2*buttonMapSize)
)

// ErrShortRead is returned when the node yields fewer bytes than one event
// record. The caller logs it and keeps going; it is never fatal.
var ErrShortRead = errors.New("joydev: short read")

// Event is one decoded js_event record.
type Event struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

// Kind returns the event type with the synthetic init flag masked off.
func (e Event) Kind() uint8 {
	return e.Type &^ EventInit
}

// DecodeEvent decodes one fixed-size js_event record.
func DecodeEvent(buf []byte) (Event, error) {
	if len(buf) < eventSize {
		return Event{}, ErrShortRead
	}
	return Event{
		Time:   binary.LittleEndian.Uint32(buf[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		Type:   buf[6],
		Number: buf[7],
	}, nil
}

// Device is an open legacy (joydev) interface of a controller. It is read
// only: state records flow from it, nothing is ever written back.
type Device struct {
	fd    int
	path  string
	guard devnode.Guard
	buf   [eventSize]byte
}

// Open opens the legacy node read-only and non-blocking, widening the node's
// read bits around the open and stripping them afterwards so other consumers
// do not see duplicate controllers.
func Open(path string) (*Device, error) {
	fd, guard, err := devnode.OpenGuarded(path, unix.O_RDONLY, 0o440, 0o444)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd, path: path, guard: guard}, nil
}

// Fd returns the descriptor for readiness registration.
func (d *Device) Fd() int {
	return d.fd
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Axes returns the axis count reported by the kernel.
func (d *Device) Axes() (int, error) {
	var n uint8
	if err := ioc.Ioctl(d.fd, reqAxes, uintptr(unsafe.Pointer(&n))); err != nil {
		return 0, fmt.Errorf("joydev: querying axis count: %w", err)
	}
	return int(n), nil
}

// Buttons returns the button count reported by the kernel.
func (d *Device) Buttons() (int, error) {
	var n uint8
	if err := ioc.Ioctl(d.fd, reqButtons, uintptr(unsafe.Pointer(&n))); err != nil {
		return 0, fmt.Errorf("joydev: querying button count: %w", err)
	}
	return int(n), nil
}

// AxisMap returns the per-index map from legacy axis index to generic
// absolute-axis code. Read once at activation; immutable thereafter.
func (d *Device) AxisMap() ([AbsCount]uint8, error) {
	var m [AbsCount]uint8
	if err := ioc.Ioctl(d.fd, reqAxisMap, uintptr(unsafe.Pointer(&m[0]))); err != nil {
		return m, fmt.Errorf("joydev: querying axis map: %w", err)
	}
	return m, nil
}

// ButtonMap returns the per-index map from legacy button index to generic
// key code. Read once at activation; immutable thereafter.
func (d *Device) ButtonMap() ([buttonMapSize]uint16, error) {
	var m [buttonMapSize]uint16
	if err := ioc.Ioctl(d.fd, reqButtonMap, uintptr(unsafe.Pointer(&m[0]))); err != nil {
		return m, fmt.Errorf("joydev: querying button map: %w", err)
	}
	return m, nil
}

// ReadEvent reads exactly one state record. Anything shorter is ErrShortRead.
func (d *Device) ReadEvent() (Event, error) {
	n, err := unix.Read(d.fd, d.buf[:])
	if err != nil {
		return Event{}, fmt.Errorf("joydev: reading %s: %w", d.path, err)
	}
	if n != eventSize {
		return Event{}, ErrShortRead
	}
	return DecodeEvent(d.buf[:])
}

// RestoreMode puts the node's pre-open permission bits back.
func (d *Device) RestoreMode() error {
	return d.guard.Restore()
}

// Close releases the descriptor. Safe to call more than once.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
