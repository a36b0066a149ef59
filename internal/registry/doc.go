// Package registry correlates the two kernel interfaces of each physical
// controller into a single record.
//
// A controller surfaces as two device nodes, a legacy joydev node and a
// generic evdev node, announced independently and in no guaranteed order.
// Both carry the same stable hardware path, which serves as the
// correlation key. Records live in a fixed slot arena; handles carry a
// generation counter so references to a departed controller cannot alias
// a newcomer that reused its slot.
package registry
