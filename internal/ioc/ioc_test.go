package ioc

import "testing"

// Reference values taken from the kernel headers via a C compiler.
func TestEncoding(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"JSIOCGAXES", IOR('j', 0x11, 1), 0x80016a11},
		{"JSIOCGBUTTONS", IOR('j', 0x12, 1), 0x80016a12},
		{"JSIOCGAXMAP", IOR('j', 0x32, 0x40), 0x80406a32},
		{"JSIOCGBTNMAP", IOR('j', 0x34, 0x400), 0x84006a34},
		{"EVIOCSFF", IOW('E', 0x80, 48), 0x40304580},
		{"EVIOCRMFF", IOW('E', 0x81, 4), 0x40044581},
		{"EVIOCGEFFECTS", IOR('E', 0x84, 4), 0x80044584},
		{"UI_DEV_CREATE", IO('U', 1), 0x5501},
		{"UI_DEV_DESTROY", IO('U', 2), 0x5502},
		{"UI_SET_EVBIT", IOW('U', 100, 4), 0x40045564},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %#x, want %#x", tt.got, tt.want)
			}
		})
	}
}
