package hotplug

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/jochenvg/go-udev"
	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/registry"
)

// Udev property names consulted during classification.
const (
	propJoystick = "ID_INPUT_JOYSTICK"
	propKey      = "ID_PATH"
)

// Action is a device lifecycle transition.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Notification is one classified hotplug event.
type Notification struct {
	Action Action
	Kind   registry.InterfaceKind
	Path   string
	Key    string
}

// Logger is the minimal logging surface the monitor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Classify decides whether a udev input event concerns a controller
// interface worth tracking. Devices under a virtual devpath are our own
// synthesised mirrors surfacing back through udev and must never be
// tracked, or every mirror would get a mirror of its own. The joystick
// property gates additions only: properties on removal events are not
// always populated, and removal of an untracked key is a no-op downstream
// anyway.
func Classify(action, devnode, devpath, key, joystick string) (Notification, bool) {
	if devnode == "" || key == "" {
		return Notification{}, false
	}
	if strings.Contains(devpath, "/virtual/") {
		return Notification{}, false
	}

	var kind registry.InterfaceKind
	base := path.Base(devnode)
	switch {
	case strings.HasPrefix(base, "js"):
		kind = registry.KindLegacy
	case strings.HasPrefix(base, "event"):
		kind = registry.KindGeneric
	default:
		return Notification{}, false
	}

	switch Action(action) {
	case ActionAdd:
		if joystick != "1" {
			return Notification{}, false
		}
	case ActionRemove:
	default:
		return Notification{}, false
	}

	return Notification{Action: Action(action), Kind: kind, Path: devnode, Key: key}, true
}

// Monitor watches udev for controller interfaces coming and going. Events
// are classified on a background goroutine and queued on a buffered
// channel; each queued notification pokes a wake descriptor so a
// readiness-driven loop notices without polling the channel.
type Monitor struct {
	notifications chan Notification
	wakeFd        int
	log           Logger
}

// Start seeds the queue with the controllers already present, then begins
// streaming netlink events until ctx is cancelled. A monitor that cannot
// be established is a startup failure; without it the daemon would serve
// only the initial device set.
//
// The monitor takes ownership of wakeFd. When the stream ends it writes a
// final poke, so a loop parked in a readiness wait notices the
// cancellation, and only then closes the descriptor. Nothing else may
// close wakeFd once Start has succeeded.
func Start(ctx context.Context, wakeFd int, log Logger) (*Monitor, error) {
	if log == nil {
		log = noopLogger{}
	}

	u := udev.Udev{}
	m := u.NewMonitorFromNetlink("udev")
	if m == nil {
		return nil, fmt.Errorf("hotplug: creating netlink monitor")
	}
	if err := m.FilterAddMatchSubsystem("input"); err != nil {
		return nil, fmt.Errorf("hotplug: filtering input subsystem: %w", err)
	}
	ch, err := m.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotplug: starting netlink stream: %w", err)
	}

	mon := &Monitor{
		notifications: make(chan Notification, 64),
		wakeFd:        wakeFd,
		log:           log,
	}

	if err := mon.enumerate(&u); err != nil {
		return nil, err
	}

	go mon.pump(ch)
	return mon, nil
}

// Notifications is the queue of classified events. Drained by the dispatch
// loop after a wake poke.
func (m *Monitor) Notifications() <-chan Notification {
	return m.notifications
}

// enumerate queues the controller interfaces already present at startup,
// as synthetic additions.
func (m *Monitor) enumerate(u *udev.Udev) error {
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("input"); err != nil {
		return fmt.Errorf("hotplug: matching input subsystem: %w", err)
	}
	if err := e.AddMatchProperty(propJoystick, "1"); err != nil {
		return fmt.Errorf("hotplug: matching joystick property: %w", err)
	}
	devices, err := e.Devices()
	if err != nil {
		return fmt.Errorf("hotplug: enumerating devices: %w", err)
	}

	for _, d := range devices {
		n, ok := Classify(string(ActionAdd), d.Devnode(), d.Devpath(), d.PropertyValue(propKey), "1")
		if !ok {
			continue
		}
		m.log.Debug("found existing interface", "kind", n.Kind, "path", n.Path, "key", n.Key)
		m.queue(n)
	}
	return nil
}

func (m *Monitor) pump(ch <-chan *udev.Device) {
	for d := range ch {
		n, ok := Classify(d.Action(), d.Devnode(), d.Devpath(), d.PropertyValue(propKey), d.PropertyValue(propJoystick))
		if !ok {
			continue
		}
		m.queue(n)
	}
	m.finish()
}

// finish runs after the device stream closes: one last poke so the
// dispatch loop wakes up and observes the cancelled context, then the
// write end goes away. The pipe's read side outlives it and drains as
// usual.
func (m *Monitor) finish() {
	if _, err := unix.Write(m.wakeFd, []byte{0}); err != nil && err != unix.EAGAIN {
		m.log.Warn("waking dispatch loop for shutdown", "error", err)
	}
	unix.Close(m.wakeFd)
}

func (m *Monitor) queue(n Notification) {
	select {
	case m.notifications <- n:
	default:
		m.log.Warn("notification queue full, dropping event", "action", n.Action, "path", n.Path)
		return
	}
	if _, err := unix.Write(m.wakeFd, []byte{0}); err != nil && err != unix.EAGAIN {
		m.log.Warn("waking dispatch loop", "error", err)
	}
}
