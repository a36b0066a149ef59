package uinput

import (
	"encoding/binary"

	"github.com/nerrad567/joymirror/internal/eventnode"
	"github.com/nerrad567/joymirror/internal/ioc"
)

// Kernel uinput ABI constants from linux/uinput.h.
const (
	maxNameSize = 80
	userDevSize = maxNameSize + 8 + 4 + 4*4*eventnode.AbsCount

	ffUploadSize = 104
	ffEraseSize  = 12

	busUSB = 0x03

	axisRange = 32767
)

// EvUinput is the pseudo event type the kernel delivers on a uinput
// descriptor to start a force-feedback handshake.
const EvUinput = 0x0101

// Handshake request kinds carried in an EvUinput event's code field.
const (
	RequestUpload = 1
	RequestErase  = 2
)

// uinput ioctl requests.
var (
	reqDevCreate  = ioc.IO('U', 1)
	reqDevDestroy = ioc.IO('U', 2)

	reqSetEvBit  = ioc.IOW('U', 100, 4)
	reqSetKeyBit = ioc.IOW('U', 101, 4)
	reqSetAbsBit = ioc.IOW('U', 103, 4)
	reqSetFFBit  = ioc.IOW('U', 107, 4)

	reqBeginFFUpload = ioc.IOWR('U', 200, ffUploadSize)
	reqEndFFUpload   = ioc.IOW('U', 201, ffUploadSize)
	reqBeginFFErase  = ioc.IOWR('U', 202, ffEraseSize)
	reqEndFFErase    = ioc.IOW('U', 203, ffEraseSize)
)

// FFUpload mirrors struct uinput_ff_upload. Between the begin and end
// ioctls the caller inspects Effect, relays it, and sets Retval to the
// outcome the kernel should report to the requesting application.
type FFUpload struct {
	RequestID uint32
	Retval    int32
	Effect    eventnode.Effect
	Old       eventnode.Effect
}

// FFErase mirrors struct uinput_ff_erase.
type FFErase struct {
	RequestID uint32
	Retval    int32
	EffectID  uint32
}

// marshalUserDev encodes a uinput_user_dev record. Every advertised
// absolute axis gets the symmetric signed 16-bit range the legacy
// interface reports in.
func marshalUserDev(cfg DeviceConfig) []byte {
	buf := make([]byte, userDevSize)
	name := cfg.Name
	if len(name) > maxNameSize-1 {
		name = name[:maxNameSize-1]
	}
	copy(buf, name)

	binary.LittleEndian.PutUint16(buf[80:82], busUSB)
	binary.LittleEndian.PutUint16(buf[82:84], cfg.Vendor)
	binary.LittleEndian.PutUint16(buf[84:86], cfg.Product)
	binary.LittleEndian.PutUint16(buf[86:88], cfg.Version)
	binary.LittleEndian.PutUint32(buf[88:92], cfg.EffectsMax)

	const (
		absMaxOff = 92
		absMinOff = absMaxOff + 4*eventnode.AbsCount
	)
	absMin := int32(-axisRange)
	for _, code := range cfg.AbsCodes {
		if code < 0 || code >= eventnode.AbsCount {
			continue
		}
		binary.LittleEndian.PutUint32(buf[absMaxOff+4*code:], uint32(int32(axisRange)))
		binary.LittleEndian.PutUint32(buf[absMinOff+4*code:], uint32(absMin))
	}
	return buf
}
