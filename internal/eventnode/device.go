package eventnode

import (
	"fmt"
	"sort"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/devnode"
	"github.com/nerrad567/joymirror/internal/ioc"
)

// evdev ioctl requests.
var (
	reqEffectCount  = ioc.IOR('E', 0x84, 4)          // EVIOCGEFFECTS
	reqUploadEffect = ioc.IOW('E', 0x80, EffectSize) // EVIOCSFF
	reqRemoveEffect = ioc.IOW('E', 0x81, 4)          // EVIOCRMFF
)

// CapabilitySet holds the generic interface's supported-event bitsets,
// bounded to the fixed maximum code values.
type CapabilitySet struct {
	// Keys are the supported key codes (≤ KeyMax), ascending.
	Keys []int

	// Abs are the supported absolute-axis codes (≤ AbsMax), ascending.
	Abs []int

	// Effects are the supported force-feedback effect codes (< FFCnt),
	// ascending.
	Effects []int
}

// Device is an open generic (evdev) interface of a controller. It is opened
// read/write but never polled for readiness: state mirroring happens on the
// legacy interface, and this descriptor serves only directed writes and
// effect management. Half-duplex by design.
type Device struct {
	fd    int
	path  string
	guard devnode.Guard
}

// Open opens the generic node read/write and non-blocking, widening the
// node's read/write bits around the open and stripping them afterwards.
func Open(path string) (*Device, error) {
	fd, guard, err := devnode.OpenGuarded(path, unix.O_RDWR, 0o660, 0o666)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd, path: path, guard: guard}, nil
}

// Fd returns the descriptor. It is registered nowhere; exposed for logging.
func (d *Device) Fd() int {
	return d.fd
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Capabilities queries the supported key, absolute-axis and force-feedback
// bitsets. A failure here is fatal to the caller: a virtual device built
// from partial capability data would silently misreport behaviour and
// cannot be corrected after creation.
func (d *Device) Capabilities() (CapabilitySet, error) {
	probe, err := evdev.Open(d.path)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("eventnode: probing capabilities of %s: %w", d.path, err)
	}
	defer probe.File.Close()

	var set CapabilitySet
	for typ, codes := range probe.Capabilities {
		for _, c := range codes {
			switch typ.Type {
			case evdev.EV_KEY:
				if c.Code <= KeyMax {
					set.Keys = append(set.Keys, c.Code)
				}
			case evdev.EV_ABS:
				if c.Code <= AbsMax {
					set.Abs = append(set.Abs, c.Code)
				}
			case evdev.EV_FF:
				if c.Code < FFCnt {
					set.Effects = append(set.Effects, c.Code)
				}
			}
		}
	}

	sort.Ints(set.Keys)
	sort.Ints(set.Abs)
	sort.Ints(set.Effects)
	return set, nil
}

// EffectCount returns the maximum number of simultaneously-resident effects
// the physical device supports, used to size the virtual device's pool.
func (d *Device) EffectCount() (int, error) {
	var n int32
	if err := ioc.Ioctl(d.fd, reqEffectCount, uintptr(unsafe.Pointer(&n))); err != nil {
		return 0, fmt.Errorf("eventnode: querying effect count on %s: %w", d.path, err)
	}
	return int(n), nil
}

// UploadEffect submits an effect to the physical device. With ID set to
// NoEffect the kernel allocates a fresh physical-side id and writes it back
// into the struct; with an existing id the effect is updated in place.
func (d *Device) UploadEffect(e *Effect) error {
	if err := ioc.Ioctl(d.fd, reqUploadEffect, uintptr(unsafe.Pointer(e))); err != nil {
		return fmt.Errorf("eventnode: uploading effect to %s: %w", d.path, err)
	}
	return nil
}

// RemoveEffect erases a physical-side effect by id. Removing an id that is
// no longer installed returns an error the caller is free to ignore;
// removal is idempotent from the relay's point of view.
func (d *Device) RemoveEffect(id int16) error {
	if err := ioc.Ioctl(d.fd, reqRemoveEffect, uintptr(int(id))); err != nil {
		return fmt.Errorf("eventnode: removing effect %d from %s: %w", id, d.path, err)
	}
	return nil
}

// WriteEvent writes one event verbatim, same type, code and value. Used for
// force-feedback play and gain forwarding.
func (d *Device) WriteEvent(typ, code uint16, value int32) error {
	buf := Event{Type: typ, Code: code, Value: value}.Marshal()
	if _, err := unix.Write(d.fd, buf[:]); err != nil {
		return fmt.Errorf("eventnode: writing event to %s: %w", d.path, err)
	}
	return nil
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
