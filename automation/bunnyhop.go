// Package automation holds the movement helpers: repeated jumping while the
// jump key is held, and flash suppression. Both act once per polling cycle
// from the engine loop.
package automation

import (
	"time"

	"violetwing/input"
	"violetwing/memory"
	"violetwing/offsets"
	"violetwing/snapshot"
)

// Force-jump command values understood by the engine's input system.
const (
	forceJumpPress   = 65537
	forceJumpRelease = 256
)

// Bunnyhop re-issues a jump every cycle the jump key is held and the local
// player touches the ground. The jump goes out either as a dwForceJump memory
// write or as a synthesized space press, per config.
type Bunnyhop struct {
	w        memory.Writer
	kb       input.Keyboard
	pressed  bool
	viaKey   bool
	lastJump time.Time
}

func NewBunnyhop(w memory.Writer, kb input.Keyboard) *Bunnyhop {
	return &Bunnyhop{w: w, kb: kb}
}

// Step runs one cycle. held reflects the physical jump key; ws may be nil
// when no snapshot is available. minInterval spaces consecutive jumps;
// useWrite selects the memory-write path over key synthesis.
func (b *Bunnyhop) Step(now time.Time, set *offsets.Set, base uintptr, ws *snapshot.WorldSnapshot, held bool, minInterval time.Duration, useWrite bool) error {
	addr, err := b.jumpAddr(set, base)
	if err != nil {
		return err
	}

	if !held || ws == nil {
		return b.release(addr)
	}

	if !ws.Local.OnGround || now.Sub(b.lastJump) < minInterval {
		// Airborne or too soon: let go so the next jump queues on landing.
		return b.release(addr)
	}

	if useWrite {
		if err := memory.WriteUint32(b.w, addr, forceJumpPress); err != nil {
			return err
		}
		b.viaKey = false
	} else {
		b.kb.KeyDown(input.VKSpace)
		b.viaKey = true
	}
	b.pressed = true
	b.lastJump = now
	return nil
}

func (b *Bunnyhop) jumpAddr(set *offsets.Set, base uintptr) (uintptr, error) {
	off, err := set.MustTyped(offsets.DwForceJump, offsets.KindUint32)
	if err != nil {
		return 0, err
	}
	return base + off, nil
}

func (b *Bunnyhop) release(addr uintptr) error {
	if !b.pressed {
		return nil
	}
	if b.viaKey {
		b.kb.KeyUp(input.VKSpace)
	} else if err := memory.WriteUint32(b.w, addr, forceJumpRelease); err != nil {
		return err
	}
	b.pressed = false
	return nil
}

// Release force-clears the jump. Called on feature disable and on handle loss
// so neither the command nor a synthetic key ever sticks.
func (b *Bunnyhop) Release(set *offsets.Set, base uintptr) error {
	if b.viaKey {
		if b.pressed {
			b.kb.KeyUp(input.VKSpace)
			b.pressed = false
		}
		return nil
	}
	if set == nil {
		b.pressed = false
		return nil
	}
	addr, err := b.jumpAddr(set, base)
	if err != nil {
		b.pressed = false
		return err
	}
	return b.release(addr)
}

// Pressed reports whether a jump is currently asserted.
func (b *Bunnyhop) Pressed() bool { return b.pressed }
