package mirror

import (
	"github.com/nerrad567/joymirror/internal/eventnode"
)

// Capabilities is the event surface a virtual device advertises, computed
// from both interfaces of its physical controller.
type Capabilities struct {
	Keys    []int
	Abs     []int
	Effects []int
}

// ComputeCapabilities merges the two interface views of one controller.
//
// The legacy interface is authoritative for axis identity: its axis map
// names the event code behind each axis number, and only those codes are
// advertised. Buttons come from the generic interface's key bitset,
// clipped to the controller button range so stray keyboard codes on
// combination devices are not mirrored. Force-feedback capability passes
// through from the generic interface's effect bitset.
func ComputeCapabilities(axes, buttons int, axisMap []uint8, caps eventnode.CapabilitySet) Capabilities {
	var out Capabilities

	if buttons > 0 {
		for _, code := range caps.Keys {
			if code >= eventnode.BtnMisc && code <= eventnode.BtnGearUp {
				out.Keys = append(out.Keys, code)
			}
		}
	}

	if axes > len(axisMap) {
		axes = len(axisMap)
	}
	seen := make(map[uint8]bool, axes)
	for _, code := range axisMap[:axes] {
		if seen[code] {
			continue
		}
		seen[code] = true
		out.Abs = append(out.Abs, int(code))
	}

	for _, code := range caps.Effects {
		if code >= eventnode.FFEffectMin {
			out.Effects = append(out.Effects, code)
		}
	}

	return out
}
