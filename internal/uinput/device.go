package uinput

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/eventnode"
	"github.com/nerrad567/joymirror/internal/ioc"
)

const devicePath = "/dev/uinput"

// DeviceConfig describes the virtual device to synthesise. Capability
// slices carry event codes copied from the physical controller.
type DeviceConfig struct {
	Name    string
	Vendor  uint16
	Product uint16
	Version uint16

	// EffectsMax is the number of force-feedback effects the virtual
	// device may hold at once, mirrored from the physical device.
	EffectsMax uint32

	KeyCodes    []int
	AbsCodes    []int
	EffectTypes []int
}

// Device is a synthesised uinput device. Its descriptor is readable: the
// kernel delivers force-feedback play and gain events plus upload and erase
// handshake requests through it.
type Device struct {
	fd   int
	name string
	buf  [eventnode.EventSize]byte
}

// Create opens /dev/uinput, advertises the configured capabilities and
// brings the device up. Creation failure leaves nothing behind; the
// descriptor is closed on any error path.
func Create(cfg DeviceConfig) (*Device, error) {
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput: opening %s: %w", devicePath, err)
	}

	d := &Device{fd: fd, name: cfg.Name}
	if err := d.advertise(cfg); err != nil {
		unix.Close(fd)
		return nil, err
	}

	userDev := marshalUserDev(cfg)
	if _, err := unix.Write(fd, userDev); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("uinput: writing device record for %q: %w", cfg.Name, err)
	}
	if err := ioc.Ioctl(fd, reqDevCreate, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("uinput: creating device %q: %w", cfg.Name, err)
	}
	return d, nil
}

func (d *Device) advertise(cfg DeviceConfig) error {
	if len(cfg.KeyCodes) > 0 {
		if err := d.setBits(reqSetKeyBit, eventnode.EvKey, cfg.KeyCodes); err != nil {
			return err
		}
	}
	if len(cfg.AbsCodes) > 0 {
		if err := d.setBits(reqSetAbsBit, eventnode.EvAbs, cfg.AbsCodes); err != nil {
			return err
		}
	}
	if len(cfg.EffectTypes) > 0 {
		if err := d.setBits(reqSetFFBit, eventnode.EvFF, cfg.EffectTypes); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) setBits(req uintptr, evType int, codes []int) error {
	if err := ioc.Ioctl(d.fd, reqSetEvBit, uintptr(evType)); err != nil {
		return fmt.Errorf("uinput: advertising event type %#x: %w", evType, err)
	}
	for _, code := range codes {
		if err := ioc.Ioctl(d.fd, req, uintptr(code)); err != nil {
			return fmt.Errorf("uinput: advertising code %#x of type %#x: %w", code, evType, err)
		}
	}
	return nil
}

// Fd returns the descriptor for readiness registration.
func (d *Device) Fd() int {
	return d.fd
}

// Name returns the advertised device name.
func (d *Device) Name() string {
	return d.name
}

// Emit injects one event into the virtual device.
func (d *Device) Emit(typ, code uint16, value int32) error {
	buf := eventnode.Event{Type: typ, Code: code, Value: value}.Marshal()
	if _, err := unix.Write(d.fd, buf[:]); err != nil {
		return fmt.Errorf("uinput: emitting event on %q: %w", d.name, err)
	}
	return nil
}

// Sync emits a SYN_REPORT, flushing prior events to readers.
func (d *Device) Sync() error {
	return d.Emit(eventnode.EvSyn, eventnode.SynReport, 0)
}

// ReadEvent reads exactly one event from the descriptor. These are the
// kernel-originated force-feedback commands and handshake requests.
func (d *Device) ReadEvent() (eventnode.Event, error) {
	n, err := unix.Read(d.fd, d.buf[:])
	if err != nil {
		return eventnode.Event{}, fmt.Errorf("uinput: reading from %q: %w", d.name, err)
	}
	if n != eventnode.EventSize {
		return eventnode.Event{}, eventnode.ErrShortRead
	}
	return eventnode.UnmarshalEvent(d.buf[:])
}

// BeginFFUpload fetches the pending upload request named by up.RequestID.
// The kernel fills in Effect and Old.
func (d *Device) BeginFFUpload(up *FFUpload) error {
	if err := ioc.Ioctl(d.fd, reqBeginFFUpload, uintptr(unsafe.Pointer(up))); err != nil {
		return fmt.Errorf("uinput: beginning upload %d on %q: %w", up.RequestID, d.name, err)
	}
	return nil
}

// EndFFUpload completes the handshake, reporting up.Retval to the
// application that requested the upload.
func (d *Device) EndFFUpload(up *FFUpload) error {
	if err := ioc.Ioctl(d.fd, reqEndFFUpload, uintptr(unsafe.Pointer(up))); err != nil {
		return fmt.Errorf("uinput: ending upload %d on %q: %w", up.RequestID, d.name, err)
	}
	return nil
}

// BeginFFErase fetches the pending erase request named by er.RequestID.
// The kernel fills in EffectID.
func (d *Device) BeginFFErase(er *FFErase) error {
	if err := ioc.Ioctl(d.fd, reqBeginFFErase, uintptr(unsafe.Pointer(er))); err != nil {
		return fmt.Errorf("uinput: beginning erase %d on %q: %w", er.RequestID, d.name, err)
	}
	return nil
}

// EndFFErase completes the erase handshake.
func (d *Device) EndFFErase(er *FFErase) error {
	if err := ioc.Ioctl(d.fd, reqEndFFErase, uintptr(unsafe.Pointer(er))); err != nil {
		return fmt.Errorf("uinput: ending erase %d on %q: %w", er.RequestID, d.name, err)
	}
	return nil
}

// Destroy tears the virtual device down and closes the descriptor. Safe to
// call more than once; the first error wins.
func (d *Device) Destroy() error {
	if d.fd < 0 {
		return nil
	}
	err := ioc.Ioctl(d.fd, reqDevDestroy, 0)
	if cerr := unix.Close(d.fd); err == nil {
		err = cerr
	}
	d.fd = -1
	if err != nil {
		return fmt.Errorf("uinput: destroying %q: %w", d.name, err)
	}
	return nil
}
