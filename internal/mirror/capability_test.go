package mirror

import (
	"reflect"
	"testing"

	"github.com/nerrad567/joymirror/internal/eventnode"
)

func TestComputeCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		axes    int
		buttons int
		axisMap []uint8
		caps    eventnode.CapabilitySet
		want    Capabilities
	}{
		{
			name:    "typical gamepad",
			axes:    4,
			buttons: 2,
			axisMap: []uint8{0x00, 0x01, 0x03, 0x04},
			caps: eventnode.CapabilitySet{
				Keys:    []int{0x130, 0x131},
				Abs:     []int{0x00, 0x01, 0x03, 0x04},
				Effects: []int{eventnode.FFRumble, eventnode.FFPeriodic},
			},
			want: Capabilities{
				Keys:    []int{0x130, 0x131},
				Abs:     []int{0x00, 0x01, 0x03, 0x04},
				Effects: []int{eventnode.FFRumble, eventnode.FFPeriodic},
			},
		},
		{
			name:    "six axes twelve buttons with rumble",
			axes:    6,
			buttons: 12,
			axisMap: []uint8{0x00, 0x01, 0x02, 0x05, 0x10, 0x11},
			caps: eventnode.CapabilitySet{
				Keys: []int{
					0x130, 0x131, 0x133, 0x134, 0x136, 0x137,
					0x13A, 0x13B, 0x13C, 0x13D, 0x13E, 0x151,
				},
				Abs:     []int{0x00, 0x01, 0x02, 0x05, 0x10, 0x11},
				Effects: []int{eventnode.FFRumble},
			},
			want: Capabilities{
				Keys: []int{
					0x130, 0x131, 0x133, 0x134, 0x136, 0x137,
					0x13A, 0x13B, 0x13C, 0x13D, 0x13E, 0x151,
				},
				Abs:     []int{0x00, 0x01, 0x02, 0x05, 0x10, 0x11},
				Effects: []int{eventnode.FFRumble},
			},
		},
		{
			name:    "keyboard codes on combination device are clipped",
			axes:    1,
			buttons: 3,
			axisMap: []uint8{0x00},
			caps: eventnode.CapabilitySet{
				Keys: []int{0x01, 0x1C, 0x130, 0x131, 0x2C0},
				Abs:  []int{0x00},
			},
			want: Capabilities{
				Keys: []int{0x130, 0x131, 0x2C0},
				Abs:  []int{0x00},
			},
		},
		{
			name:    "no buttons means no keys even with a key bitset",
			axes:    1,
			buttons: 0,
			axisMap: []uint8{0x00},
			caps: eventnode.CapabilitySet{
				Keys: []int{0x130},
				Abs:  []int{0x00},
			},
			want: Capabilities{
				Abs: []int{0x00},
			},
		},
		{
			name:    "duplicate axis codes collapse",
			axes:    3,
			axisMap: []uint8{0x10, 0x10, 0x11},
			want: Capabilities{
				Abs: []int{0x10, 0x11},
			},
		},
		{
			name:    "axis count clamped to map length",
			axes:    10,
			axisMap: []uint8{0x00, 0x01},
			want: Capabilities{
				Abs: []int{0x00, 0x01},
			},
		},
		{
			name: "effect codes below the effect range are dropped",
			caps: eventnode.CapabilitySet{
				Effects: []int{0x00, 0x01, eventnode.FFRumble, eventnode.FFGain},
			},
			want: Capabilities{
				Effects: []int{eventnode.FFRumble, eventnode.FFGain},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCapabilities(tt.axes, tt.buttons, tt.axisMap, tt.caps)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ComputeCapabilities() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
