// Package mirror drives the daemon: one epoll loop multiplexing hotplug
// wake-ups, legacy controller nodes and virtual device descriptors.
//
// Each physical controller that presents both a legacy and a generic
// interface gets a virtual duplicate whose capabilities are computed from
// the pair. State records read from the legacy side are replayed onto the
// virtual device; force-feedback traffic written to the virtual device is
// relayed back to the physical controller. The loop is the sole mutator of
// all engine state.
package mirror
