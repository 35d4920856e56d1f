// Package trigger implements the automated-fire state machine. It is driven
// once per polling cycle from the engine loop and never sleeps: humanized
// delays are modeled as deadlines checked against the cycle clock.
package trigger

import (
	"math/rand"
	"time"

	"violetwing/config"
	"violetwing/events"
	"violetwing/input"
	"violetwing/snapshot"
)

// State enumerates the machine's phases.
type State int

const (
	// Disarmed: the trigger key is up, nothing happens.
	Disarmed State = iota
	// Armed: the key is held, waiting for a valid target under the crosshair.
	Armed
	// PendingShot: a target was acquired, the pre-shot delay is running.
	PendingShot
	// PostShotCooldown: a shot was fired, the post-shot delay is running.
	PostShotCooldown
)

// Machine holds the trigger state across cycles. Single-goroutine use.
type Machine struct {
	mouse input.Mouse
	rng   *rand.Rand
	ev    *events.Emitter

	state    State
	deadline time.Time
	delay    time.Duration
	target   int32
	weapon   snapshot.WeaponClass
}

// NewMachine builds a trigger machine. The rng is injected so tests can fix
// the seed and assert exact delays.
func NewMachine(mouse input.Mouse, rng *rand.Rand, ev *events.Emitter) *Machine {
	return &Machine{mouse: mouse, rng: rng, ev: ev, state: Disarmed}
}

// State reports the current phase.
func (m *Machine) State() State { return m.state }

// Reset forces the machine back to Disarmed without firing. Used on handle
// loss and feature disable.
func (m *Machine) Reset() {
	m.state = Disarmed
	m.deadline = time.Time{}
	m.target = 0
}

// Step advances the machine one cycle. armed reflects the trigger key, ws may
// be nil when no snapshot is available (treated as no target).
func (m *Machine) Step(now time.Time, armed bool, ws *snapshot.WorldSnapshot, cfg config.TriggerConfig) {
	if !armed || ws == nil {
		m.Reset()
		return
	}

	switch m.state {
	case Disarmed:
		m.state = Armed
		fallthrough

	case Armed:
		idx, ok := m.acquire(ws, cfg)
		if !ok {
			return
		}
		m.target = idx
		m.weapon = ws.Local.Weapon
		m.delay = m.sampleDelay(cfg.DelayFor(string(m.weapon)))
		m.deadline = now.Add(m.delay)
		m.state = PendingShot

	case PendingShot:
		idx, ok := m.acquire(ws, cfg)
		if !ok || idx != m.target {
			// Target left the crosshair during the delay: no shot.
			m.state = Armed
			m.target = 0
			return
		}
		if now.Before(m.deadline) {
			return
		}
		m.fire()
		m.deadline = now.Add(cfg.DelayFor(string(m.weapon)).Post())
		m.state = PostShotCooldown

	case PostShotCooldown:
		if now.Before(m.deadline) {
			return
		}
		m.state = Armed
		m.target = 0
	}
}

// acquire checks whether the crosshair entity is a shootable target in this
// snapshot.
func (m *Machine) acquire(ws *snapshot.WorldSnapshot, cfg config.TriggerConfig) (int32, bool) {
	idx := ws.Local.TargetIndex
	if idx <= 0 {
		return 0, false
	}
	ent := ws.Entity(idx)
	if ent == nil || !ent.Alive {
		return 0, false
	}
	if !cfg.AttackOnTeammates && ent.Team == ws.Local.Team {
		return 0, false
	}
	return idx, true
}

// sampleDelay draws uniformly from [min, max]. A degenerate range collapses
// to min.
func (m *Machine) sampleDelay(d config.WeaponDelay) time.Duration {
	lo, hi := d.Min(), d.Max()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(m.rng.Int63n(int64(hi-lo)+1))
}

func (m *Machine) fire() {
	m.mouse.LeftDown()
	m.mouse.LeftUp()
	if m.ev != nil {
		m.ev.TriggerFired(string(m.weapon), m.delay)
	}
}
