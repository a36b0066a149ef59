// Package relay carries force-feedback traffic between a virtual device
// and the physical controller behind it.
//
// The kernel allocates effect ids independently on each side of the
// mirror, so the relay keeps an explicit virtual-to-physical id map per
// controller and translates every id-bearing command through it. Handshake
// requests surfaced on the virtual descriptor are always completed, even
// when the physical upload fails, so applications never hang waiting on a
// half-finished exchange.
package relay
