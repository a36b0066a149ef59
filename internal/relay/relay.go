package relay

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/joymirror/internal/eventnode"
	"github.com/nerrad567/joymirror/internal/uinput"
)

// PhysicalEffects is the slice of the generic interface the relay drives.
type PhysicalEffects interface {
	UploadEffect(*eventnode.Effect) error
	RemoveEffect(id int16) error
	WriteEvent(typ, code uint16, value int32) error
}

// VirtualHandshake is the slice of the virtual device the relay services.
type VirtualHandshake interface {
	BeginFFUpload(*uinput.FFUpload) error
	EndFFUpload(*uinput.FFUpload) error
	BeginFFErase(*uinput.FFErase) error
	EndFFErase(*uinput.FFErase) error
}

// Logger is the minimal logging surface the relay needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// RumbleParams configures the press-triggered haptic acknowledgement.
type RumbleParams struct {
	StrongMagnitude uint16
	LengthMS        uint16
}

// Relay carries force-feedback traffic from one virtual device to its
// physical controller. Effect ids are allocated independently on each
// side, so every upload outcome is recorded in an explicit virtual-to-
// physical id map and every referencing command is translated through it.
// Not safe for concurrent use; all calls happen on the dispatch loop.
type Relay struct {
	phys   PhysicalEffects
	virt   VirtualHandshake
	log    Logger
	rumble RumbleParams

	mapping map[int16]int16
	selfID  int16
}

// New returns a relay for one controller pairing. A nil logger disables
// relay logging.
func New(phys PhysicalEffects, virt VirtualHandshake, rumble RumbleParams, log Logger) *Relay {
	if log == nil {
		log = noopLogger{}
	}
	return &Relay{
		phys:    phys,
		virt:    virt,
		log:     log,
		rumble:  rumble,
		mapping: make(map[int16]int16),
		selfID:  eventnode.NoEffect,
	}
}

// HandleUpload services one upload handshake. The effect body is copied to
// the physical device; a first upload of a virtual id asks the kernel for
// a fresh physical id, a repeat upload updates the existing one in place.
// The handshake is always completed, carrying the upload outcome back to
// the requesting application.
func (r *Relay) HandleUpload(requestID uint32) error {
	up := uinput.FFUpload{RequestID: requestID}
	if err := r.virt.BeginFFUpload(&up); err != nil {
		return fmt.Errorf("relay: beginning upload %d: %w", requestID, err)
	}

	virtualID := up.Effect.ID
	effect := up.Effect
	if physID, ok := r.mapping[virtualID]; ok {
		effect.ID = physID
	} else {
		effect.ID = eventnode.NoEffect
	}

	if err := r.phys.UploadEffect(&effect); err != nil {
		up.Retval = errnoRetval(err)
		r.log.Warn("effect upload failed", "virtual_id", virtualID, "error", err)
	} else {
		r.mapping[virtualID] = effect.ID
		up.Retval = 0
		r.log.Debug("effect uploaded", "virtual_id", virtualID, "physical_id", effect.ID)
	}

	if err := r.virt.EndFFUpload(&up); err != nil {
		return fmt.Errorf("relay: ending upload %d: %w", requestID, err)
	}
	return nil
}

// HandleErase services one erase handshake. Erasing a virtual id that was
// never successfully uploaded succeeds without touching the physical
// device; the application's view is already consistent. A mapping entry
// only dies with its physical effect: on a failed removal the entry stays,
// so the retry the negative retval invites reaches the device instead of
// short-circuiting on a forgotten id.
func (r *Relay) HandleErase(requestID uint32) error {
	er := uinput.FFErase{RequestID: requestID}
	if err := r.virt.BeginFFErase(&er); err != nil {
		return fmt.Errorf("relay: beginning erase %d: %w", requestID, err)
	}

	virtualID := int16(er.EffectID)
	if physID, ok := r.mapping[virtualID]; ok {
		if err := r.phys.RemoveEffect(physID); err != nil {
			er.Retval = errnoRetval(err)
			r.log.Warn("effect erase failed", "virtual_id", virtualID, "physical_id", physID, "error", err)
		} else {
			delete(r.mapping, virtualID)
			r.log.Debug("effect erased", "virtual_id", virtualID, "physical_id", physID)
		}
	}

	if err := r.virt.EndFFErase(&er); err != nil {
		return fmt.Errorf("relay: ending erase %d: %w", requestID, err)
	}
	return nil
}

// Forward passes a force-feedback command from the virtual device to the
// physical one. Gain and autocentre adjustments apply device-wide and pass
// through unchanged; play and stop commands name a virtual effect id in
// their code field and are translated, or dropped when the id was never
// mapped.
func (r *Relay) Forward(ev eventnode.Event) error {
	if ev.Type != eventnode.EvFF {
		return nil
	}
	if ev.Code == eventnode.FFGain || ev.Code == eventnode.FFAutocenter {
		if ev.Code == eventnode.FFGain {
			r.log.Debug("gain adjusted", "percent", ev.Value*100/eventnode.GainMax)
		}
		return r.phys.WriteEvent(ev.Type, ev.Code, ev.Value)
	}

	physID, ok := r.mapping[int16(ev.Code)]
	if !ok {
		r.log.Debug("dropping command for unmapped effect", "virtual_id", ev.Code)
		return nil
	}
	return r.phys.WriteEvent(ev.Type, uint16(physID), ev.Value)
}

// TriggerSelfRumble uploads and plays a short strong rumble on the
// physical device. Any previous acknowledgement effect is removed first so
// each trigger gets a fresh id rather than restarting a stale one.
func (r *Relay) TriggerSelfRumble() error {
	if r.selfID != eventnode.NoEffect {
		if err := r.phys.RemoveEffect(r.selfID); err != nil {
			r.log.Debug("removing previous rumble", "physical_id", r.selfID, "error", err)
		}
		r.selfID = eventnode.NoEffect
	}

	effect := eventnode.Effect{
		Type: eventnode.FFRumble,
		ID:   eventnode.NoEffect,
		Replay: eventnode.Replay{
			Length: r.rumble.LengthMS,
		},
	}
	effect.SetRumble(r.rumble.StrongMagnitude, 0)

	if err := r.phys.UploadEffect(&effect); err != nil {
		return fmt.Errorf("relay: uploading rumble: %w", err)
	}
	r.selfID = effect.ID

	if err := r.phys.WriteEvent(eventnode.EvFF, uint16(effect.ID), 1); err != nil {
		return fmt.Errorf("relay: playing rumble: %w", err)
	}
	return nil
}

// Mapped is the number of live virtual-to-physical effect translations.
func (r *Relay) Mapped() int {
	return len(r.mapping)
}

func errnoRetval(err error) int32 {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int32(errno)
	}
	return -int32(unix.EIO)
}
