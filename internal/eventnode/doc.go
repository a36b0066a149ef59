// Package eventnode handles the generic (evdev) interface of a physical
// controller: capability discovery, force-feedback effect management and
// directed event writes.
//
// The generic descriptor is deliberately half-duplex. Input state is mirrored
// from the legacy interface, so this descriptor is never registered for
// readiness; it exists to receive effect uploads, erasures, play commands and
// gain adjustments relayed from the virtual device.
package eventnode
