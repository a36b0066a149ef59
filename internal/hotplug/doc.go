// Package hotplug discovers controller interfaces through udev, both the
// set present at startup and arrivals and departures afterwards.
//
// Udev announces each interface of a controller separately and tags both
// with the same stable hardware path, which downstream code uses as the
// correlation key. The monitor itself runs on a goroutine, but it only
// classifies and queues; a self-pipe poke hands each event to the
// single-threaded dispatch loop, which does all acting and bookkeeping.
package hotplug
