package mirror

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/eventnode"
	"github.com/nerrad567/joymirror/internal/hotplug"
	"github.com/nerrad567/joymirror/internal/infrastructure/config"
	"github.com/nerrad567/joymirror/internal/joydev"
	"github.com/nerrad567/joymirror/internal/registry"
	"github.com/nerrad567/joymirror/internal/relay"
	"github.com/nerrad567/joymirror/internal/uinput"
)

// Logger is the minimal logging surface the engine needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// eventSink is the writable face of a virtual device: one state update,
// then a sync marker sealing it. The mirroring path goes through this
// rather than the concrete device so the pairing is testable.
type eventSink interface {
	Emit(typ, code uint16, value int32) error
	Sync() error
}

// controller is one active mirror: both physical interfaces, the virtual
// device in front of them, and the relay between.
type controller struct {
	handle  registry.Handle
	key     string
	legacy  *joydev.Device
	generic *eventnode.Device
	virtual *uinput.Device
	sink    eventSink
	relay   *relay.Relay

	axisMap [joydev.AbsCount]uint8
	btnMap  [joydev.KeyMax - joydev.BtnMisc + 1]uint16

	// Last delivered value per axis and button, the state a freshly
	// attached reader would reconstruct from init records.
	axisState []int16
	btnState  []int16

	primaryDown bool
}

// Engine is the single-threaded dispatch loop. Every descriptor it owns,
// the hotplug wake pipe, each controller's legacy node and each virtual
// device, is multiplexed through one epoll instance; all state mutation
// happens between readiness returns, so no locking exists anywhere in the
// data path.
type Engine struct {
	cfg *config.Config
	log Logger
	reg *registry.Registry

	epfd  int
	wakeR int

	monitor *hotplug.Monitor

	// active indexes controllers by the descriptors registered with epoll:
	// both the legacy fd and the virtual fd of a controller resolve to it.
	active   map[int]*controller
	byHandle map[registry.Handle]*controller
}

// New returns an engine. Run does all resource acquisition.
func New(cfg *config.Config, log Logger) *Engine {
	if log == nil {
		log = noopLogger{}
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		reg:      registry.New(cfg.Registry.MaxDevices),
		epfd:     -1,
		wakeR:    -1,
		active:   make(map[int]*controller),
		byHandle: make(map[registry.Handle]*controller),
	}
}

// Run mirrors controllers until ctx is cancelled or an unrecoverable error
// occurs. On return every virtual device has been destroyed and every node
// mode restored, as far as teardown allowed.
func (e *Engine) Run(ctx context.Context) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("mirror: creating epoll instance: %w", err)
	}
	e.epfd = epfd
	defer e.closeLoop()

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fmt.Errorf("mirror: creating wake pipe: %w", err)
	}
	e.wakeR = pipeFds[0]
	wakeW := pipeFds[1]

	if err := e.watch(e.wakeR); err != nil {
		unix.Close(wakeW)
		return err
	}

	// The monitor owns the write end from here: its final poke on shutdown
	// is what wakes the loop out of EpollWait after ctx is cancelled, and
	// it closes the descriptor only once nothing can write to it again.
	monitor, err := hotplug.Start(ctx, wakeW, e.log)
	if err != nil {
		unix.Close(wakeW)
		return err
	}
	e.monitor = monitor

	e.log.Info("engine running", "max_devices", e.reg.Cap())

	defer e.teardownAll()

	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(e.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("mirror: waiting for readiness: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == e.wakeR {
				e.drainWake()
				if err := e.drainNotifications(); err != nil {
					return err
				}
				continue
			}

			c, ok := e.active[fd]
			if !ok {
				// A notification handled earlier in this batch tore the
				// controller down; readiness for its old fd is stale.
				continue
			}
			switch fd {
			case c.legacy.Fd():
				e.serviceLegacy(c)
			case c.virtual.Fd():
				e.serviceVirtual(c)
			}
		}

		if ctx.Err() != nil {
			e.log.Info("shutting down", "active", len(e.byHandle))
			return nil
		}
	}
}

func (e *Engine) drainWake() {
	var buf [16]byte
	for {
		if _, err := unix.Read(e.wakeR, buf[:]); err != nil {
			return
		}
	}
}

func (e *Engine) drainNotifications() error {
	for {
		select {
		case n := <-e.monitor.Notifications():
			if err := e.handleNotification(n); err != nil {
				return err
			}
		default:
			e.logState()
			return nil
		}
	}
}

func (e *Engine) logState() {
	var unmatched, matched, active int
	for _, rec := range e.reg.Snapshot() {
		switch rec.State {
		case registry.StateUnmatched:
			unmatched++
		case registry.StateMatched:
			matched++
		case registry.StateActive:
			active++
		}
	}
	e.log.Debug("registry state",
		"unmatched", unmatched,
		"matched", matched,
		"active", active,
		"capacity", e.reg.Cap())
}

func (e *Engine) handleNotification(n hotplug.Notification) error {
	switch n.Action {
	case hotplug.ActionAdd:
		h, matched, err := e.reg.Seen(n.Kind, n.Key, n.Path)
		if err != nil {
			if errors.Is(err, registry.ErrCapacityExceeded) {
				e.log.Warn("ignoring controller, no free slots",
					"path", n.Path, "key", n.Key, "capacity", e.reg.Cap())
				return nil
			}
			return err
		}
		e.log.Debug("interface seen", "kind", n.Kind, "path", n.Path, "slot", h)
		if matched {
			return e.activate(h)
		}
	case hotplug.ActionRemove:
		h, rec, ok := e.reg.Removed(n.Kind, n.Key, n.Path)
		if !ok {
			return nil
		}
		e.log.Info("controller departed",
			"slot", h, "legacy", rec.LegacyPath, "generic", rec.GenericPath)
		if c, live := e.byHandle[h]; live {
			e.teardown(c)
		}
	}
	return nil
}

// activate brings a freshly matched pairing up. Node opens are recoverable,
// a controller can vanish between announcement and open, but capability
// queries and virtual device creation failing indicate a broken environment
// and abort the engine.
func (e *Engine) activate(h registry.Handle) error {
	rec, ok := e.reg.Get(h)
	if !ok {
		return nil
	}

	legacy, err := joydev.Open(rec.LegacyPath)
	if err != nil {
		e.log.Warn("opening legacy node", "path", rec.LegacyPath, "error", err)
		e.abandon(h)
		return nil
	}

	generic, err := eventnode.Open(rec.GenericPath)
	if err != nil {
		e.log.Warn("opening generic node", "path", rec.GenericPath, "error", err)
		legacy.RestoreMode()
		legacy.Close()
		e.abandon(h)
		return nil
	}

	c := &controller{handle: h, key: rec.Key, legacy: legacy, generic: generic}
	if err := e.synthesise(c, rec); err != nil {
		generic.RestoreMode()
		generic.Close()
		legacy.RestoreMode()
		legacy.Close()
		return err
	}

	if err := e.watch(legacy.Fd()); err != nil {
		e.teardown(c)
		return err
	}
	if err := e.watch(c.virtual.Fd()); err != nil {
		e.teardown(c)
		return err
	}

	e.reg.Activate(h)
	e.active[legacy.Fd()] = c
	e.active[c.virtual.Fd()] = c
	e.byHandle[h] = c

	e.log.Info("mirror active",
		"slot", h,
		"name", c.virtual.Name(),
		"legacy", rec.LegacyPath,
		"generic", rec.GenericPath)
	return nil
}

// synthesise queries the controller's capabilities and creates the virtual
// device in their image.
func (e *Engine) synthesise(c *controller, rec registry.Record) error {
	axes, err := c.legacy.Axes()
	if err != nil {
		return err
	}
	buttons, err := c.legacy.Buttons()
	if err != nil {
		return err
	}
	c.axisMap, err = c.legacy.AxisMap()
	if err != nil {
		return err
	}
	c.btnMap, err = c.legacy.ButtonMap()
	if err != nil {
		return err
	}

	caps, err := c.generic.Capabilities()
	if err != nil {
		return err
	}

	merged := ComputeCapabilities(axes, buttons, c.axisMap[:], caps)

	var effectsMax int
	if len(merged.Effects) > 0 {
		effectsMax, err = c.generic.EffectCount()
		if err != nil {
			return err
		}
	}

	virtual, err := uinput.Create(uinput.DeviceConfig{
		Name:        fmt.Sprintf("%s %d", e.cfg.Virtual.NamePrefix, c.handle.Index()),
		Vendor:      e.cfg.Virtual.Vendor,
		Product:     e.cfg.Virtual.Product,
		Version:     e.cfg.Virtual.Version,
		EffectsMax:  uint32(effectsMax),
		KeyCodes:    merged.Keys,
		AbsCodes:    merged.Abs,
		EffectTypes: merged.Effects,
	})
	if err != nil {
		return err
	}

	c.virtual = virtual
	c.sink = virtual
	c.axisState = make([]int16, axes)
	c.btnState = make([]int16, buttons)
	c.relay = relay.New(c.generic, virtual, relay.RumbleParams{
		StrongMagnitude: e.cfg.Rumble.StrongMagnitude,
		LengthMS:        e.cfg.Rumble.LengthMS,
	}, e.log)

	e.log.Debug("capabilities mirrored",
		"slot", c.handle,
		"keys", len(merged.Keys),
		"axes", len(merged.Abs),
		"effects", len(merged.Effects),
		"effects_max", effectsMax)
	return nil
}

// serviceLegacy drains the legacy node, translating each state record into
// a virtual event followed by a sync marker.
func (e *Engine) serviceLegacy(c *controller) {
	for {
		ev, err := c.legacy.ReadEvent()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			if errors.Is(err, joydev.ErrShortRead) {
				e.log.Warn("legacy record truncated", "slot", c.handle)
				continue
			}
			// The node died before udev said so. Tear down now; the
			// removal notification that follows will miss harmlessly.
			e.log.Warn("legacy node failed", "slot", c.handle, "error", err)
			e.reg.Drop(c.key)
			e.teardown(c)
			return
		}
		e.mirrorEvent(c, ev)
	}
}

func (e *Engine) mirrorEvent(c *controller, ev joydev.Event) {
	switch ev.Kind() {
	case joydev.EventButton:
		if int(ev.Number) >= len(c.btnMap) {
			return
		}
		code := c.btnMap[ev.Number]
		if int(ev.Number) < len(c.btnState) {
			c.btnState[ev.Number] = ev.Value
		}
		if err := c.sink.Emit(eventnode.EvKey, code, int32(ev.Value)); err != nil {
			e.log.Warn("emitting button", "slot", c.handle, "error", err)
			return
		}
		e.syncVirtual(c)
		e.log.Debug("button mirrored",
			"slot", c.handle, "button", ev.Number, "code", code, "value", ev.Value,
			"buttons", fmt.Sprint(c.btnState))
		e.primaryButton(c, ev)
	case joydev.EventAxis:
		if int(ev.Number) >= len(c.axisMap) {
			return
		}
		code := uint16(c.axisMap[ev.Number])
		if int(ev.Number) < len(c.axisState) {
			c.axisState[ev.Number] = ev.Value
		}
		if err := c.sink.Emit(eventnode.EvAbs, code, int32(ev.Value)); err != nil {
			e.log.Warn("emitting axis", "slot", c.handle, "error", err)
			return
		}
		e.syncVirtual(c)
		e.log.Debug("axis mirrored",
			"slot", c.handle, "axis", ev.Number, "code", code, "value", ev.Value,
			"axes", fmt.Sprint(c.axisState))
	}
}

func (e *Engine) syncVirtual(c *controller) {
	if err := c.sink.Sync(); err != nil {
		e.log.Warn("syncing virtual device", "slot", c.handle, "error", err)
	}
}

// primaryButton fires the haptic acknowledgement on each fresh press of
// button zero. Init records replay current state and never trigger it.
func (e *Engine) primaryButton(c *controller, ev joydev.Event) {
	if ev.Number != 0 || ev.Type&joydev.EventInit != 0 {
		return
	}
	pressed := ev.Value != 0
	if pressed && !c.primaryDown {
		if err := c.relay.TriggerSelfRumble(); err != nil {
			e.log.Warn("rumble failed", "slot", c.handle, "error", err)
		}
	}
	c.primaryDown = pressed
}

// serviceVirtual drains the virtual descriptor: handshake requests and
// force-feedback commands from applications using the mirror.
func (e *Engine) serviceVirtual(c *controller) {
	for {
		ev, err := c.virtual.ReadEvent()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			if errors.Is(err, eventnode.ErrShortRead) {
				e.log.Warn("virtual record truncated", "slot", c.handle)
				continue
			}
			e.log.Warn("virtual device failed", "slot", c.handle, "error", err)
			e.reg.Drop(c.key)
			e.teardown(c)
			return
		}

		switch ev.Type {
		case uinput.EvUinput:
			switch ev.Code {
			case uinput.RequestUpload:
				if err := c.relay.HandleUpload(uint32(ev.Value)); err != nil {
					e.log.Warn("upload handshake failed", "slot", c.handle, "error", err)
				}
			case uinput.RequestErase:
				if err := c.relay.HandleErase(uint32(ev.Value)); err != nil {
					e.log.Warn("erase handshake failed", "slot", c.handle, "error", err)
				}
			}
		case eventnode.EvFF:
			if err := c.relay.Forward(ev); err != nil {
				e.log.Warn("forwarding feedback command", "slot", c.handle, "error", err)
			}
		}
	}
}

// abandon drops a record whose activation could not proceed.
func (e *Engine) abandon(h registry.Handle) {
	if rec, ok := e.reg.Get(h); ok {
		e.reg.Drop(rec.Key)
	}
}

// teardown releases everything a controller holds. Failures are logged and
// skipped over; a dying device must never take the daemon with it, and
// each cleanup step is independent of the others.
func (e *Engine) teardown(c *controller) {
	delete(e.byHandle, c.handle)
	delete(e.active, c.legacy.Fd())
	if c.virtual != nil {
		delete(e.active, c.virtual.Fd())
	}

	e.unwatch(c.legacy.Fd())
	if c.virtual != nil {
		e.unwatch(c.virtual.Fd())
		if err := c.virtual.Destroy(); err != nil {
			e.log.Warn("destroying virtual device", "slot", c.handle, "error", err)
		}
	}

	if err := c.generic.RestoreMode(); err != nil {
		e.log.Warn("restoring generic node mode", "slot", c.handle, "error", err)
	}
	if err := c.generic.Close(); err != nil {
		e.log.Warn("closing generic node", "slot", c.handle, "error", err)
	}
	if err := c.legacy.RestoreMode(); err != nil {
		e.log.Warn("restoring legacy node mode", "slot", c.handle, "error", err)
	}
	if err := c.legacy.Close(); err != nil {
		e.log.Warn("closing legacy node", "slot", c.handle, "error", err)
	}

	e.log.Info("mirror torn down", "slot", c.handle, "key", c.key)
}

func (e *Engine) teardownAll() {
	for _, c := range e.byHandle {
		e.teardown(c)
	}
}

func (e *Engine) watch(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("mirror: registering fd %d: %w", fd, err)
	}
	return nil
}

func (e *Engine) unwatch(fd int) {
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		e.log.Debug("deregistering fd", "fd", fd, "error", err)
	}
}

func (e *Engine) closeLoop() {
	if e.wakeR >= 0 {
		unix.Close(e.wakeR)
		e.wakeR = -1
	}
	if e.epfd >= 0 {
		unix.Close(e.epfd)
		e.epfd = -1
	}
}
