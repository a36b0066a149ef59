// Package ioc computes Linux ioctl request numbers and issues ioctl calls.
//
// Request numbers follow the _IOC encoding from ioctl.h: an 8-bit command
// number, an 8-bit "magic" type, a 14-bit argument size and a 2-bit
// direction packed into a single 32-bit value.
package ioc

import (
	"golang.org/x/sys/unix"
)

const (
	dirNone  = 0x0
	dirWrite = 0x1
	dirRead  = 0x2

	nrBits   = 8
	typeBits = 8
	sizeBits = 14

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits
)

// IOC packs direction, type, number and size into a request value.
func IOC(dir, typ, nr, size uintptr) uintptr {
	return dir<<dirShift | typ<<typeShift | nr<<nrShift | size<<sizeShift
}

// IO encodes a request carrying no argument.
func IO(typ, nr uintptr) uintptr {
	return IOC(dirNone, typ, nr, 0)
}

// IOR encodes a read request of the given argument size.
func IOR(typ, nr, size uintptr) uintptr {
	return IOC(dirRead, typ, nr, size)
}

// IOW encodes a write request of the given argument size.
func IOW(typ, nr, size uintptr) uintptr {
	return IOC(dirWrite, typ, nr, size)
}

// IOWR encodes a read/write request of the given argument size.
func IOWR(typ, nr, size uintptr) uintptr {
	return IOC(dirRead|dirWrite, typ, nr, size)
}

// Ioctl issues the request against fd. arg is either a value or a pointer
// depending on the request's encoding; the caller knows which.
func Ioctl(fd int, req, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
