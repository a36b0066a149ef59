// Package uinput synthesises virtual input devices through the kernel's
// uinput interface and services their force-feedback handshakes.
//
// The handshake protocol is three-phase: the kernel signals a pending
// upload or erase as a pseudo event on the descriptor, the begin ioctl
// transfers the request body, and the end ioctl reports the relay outcome
// back to the requesting application.
package uinput
