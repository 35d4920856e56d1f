// Package engine supervises the polling pipeline: process acquisition, the
// per-cycle snapshot build, and the feature steps that consume each cycle.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"violetwing/automation"
	"violetwing/config"
	"violetwing/events"
	"violetwing/input"
	"violetwing/memory"
	"violetwing/offsets"
	"violetwing/process"
	"violetwing/snapshot"
	"violetwing/trigger"
)

const (
	acquireRetryMin = 500 * time.Millisecond
	acquireRetryMax = 5 * time.Second

	// Offsets are refetched periodically so a game update during a long
	// session is picked up without a restart.
	offsetsRefreshEvery = time.Hour

	// maxCycleFailures is the consecutive cycle-fatal failure streak after
	// which the consumers are quiesced instead of left acting on an aging
	// snapshot. At the default 10ms cadence this is half a second.
	maxCycleFailures = 50
)

// Process is the slice of the process manager the engine drives. It is an
// interface so the supervision logic can run against fakes.
type Process interface {
	memory.Reader
	Attach(processName, moduleName string) error
	IsAlive() bool
	PID() uint32
	ModuleBase() uintptr
	RefreshModuleBase() error
	Close()
}

// Window reports whether the game window has the foreground.
type Window interface {
	Focused() bool
}

// Engine owns the non-render goroutine. The overlay renderer runs separately
// on the main goroutine and only reads the snapshot store.
type Engine struct {
	cfg     *config.Manager
	proc    Process
	catalog *offsets.Catalog
	store   *snapshot.Store
	window  Window
	kb      input.Keyboard
	ev      *events.Emitter
	log     zerolog.Logger

	builder *snapshot.Builder
	trig    *trigger.Machine
	hop     *automation.Bunnyhop
	flash   *automation.NoFlash

	// Toggle-mode trigger state: flipped on each key press edge.
	trigKeyWasDown bool
	trigToggled    bool

	// Consecutive cycle-fatal failures since the last good snapshot.
	failures int
}

// Deps wires the engine's collaborators.
type Deps struct {
	Config   *config.Manager
	Process  Process
	Catalog  *offsets.Catalog
	Store    *snapshot.Store
	Window   Window
	Keyboard input.Keyboard
	Trigger  *trigger.Machine
	Bunnyhop *automation.Bunnyhop
	NoFlash  *automation.NoFlash
	Events   *events.Emitter
	Log      zerolog.Logger
}

func New(d Deps) *Engine {
	e := &Engine{
		cfg:     d.Config,
		proc:    d.Process,
		catalog: d.Catalog,
		store:   d.Store,
		window:  d.Window,
		kb:      d.Keyboard,
		ev:      d.Events,
		log:     d.Log,
		trig:    d.Trigger,
		hop:     d.Bunnyhop,
		flash:   d.NoFlash,
	}
	e.builder = snapshot.NewBuilder(memory.NewResolver(d.Process), d.Process.ModuleBase)
	return e
}

// Run blocks until ctx is done, alternating between acquisition and polling.
func (e *Engine) Run(ctx context.Context) error {
	go e.refreshOffsetsLoop(ctx)

	for {
		if err := e.acquire(ctx); err != nil {
			return err
		}
		if err := e.poll(ctx); err != nil {
			return err
		}
	}
}

// acquire retries attaching with backoff until the game process exists.
func (e *Engine) acquire(ctx context.Context) error {
	delay := acquireRetryMin
	for {
		cfg := e.cfg.Current()
		err := e.proc.Attach(cfg.General.ProcessName, cfg.General.ModuleName)
		if err == nil {
			e.ev.HandleAcquired(e.proc.PID(), e.proc.ModuleBase())
			return nil
		}
		if !errors.Is(err, process.ErrNotFound) {
			e.log.Warn().Err(err).Msg("attach failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > acquireRetryMax {
			delay = acquireRetryMax
		}
	}
}

// poll is the per-cycle loop. It returns nil on handle loss (to reacquire)
// and ctx.Err on shutdown.
func (e *Engine) poll(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	e.failures = 0
	interval := e.cfg.PollInterval()
	for {
		select {
		case <-ctx.Done():
			e.teardown(nil)
			return ctx.Err()
		case <-ticker.C:
		}

		if cur := e.cfg.PollInterval(); cur != interval {
			interval = cur
			ticker.Reset(interval)
		}

		if !e.proc.IsAlive() {
			e.teardown(errors.New("process exited"))
			return nil
		}

		err := e.cycle()
		if err != nil {
			var re *process.ReadError
			if errors.As(err, &re) && re.Denied {
				e.teardown(err)
				return nil
			}
		}
		e.observeCycle(err)
	}
}

// observeCycle tracks the cycle-fatal failure streak. One bad cycle is routine
// (map change, loading screen); a sustained streak means the published
// snapshot is only getting staler, so the consumers are suspended until a
// build succeeds again.
func (e *Engine) observeCycle(err error) {
	if err == nil {
		e.failures = 0
		return
	}
	e.failures++
	if e.failures == maxCycleFailures {
		e.suspend(err)
	}
}

// cycle is one tick: build a snapshot, publish it, step the features.
func (e *Engine) cycle() error {
	cfg := e.cfg.Current()
	now := time.Now()

	set, err := e.catalog.Current()
	if err != nil {
		e.ev.OffsetsStale(err)
		return nil
	}

	opts := snapshot.Options{
		IncludeBones:  cfg.Overlay.DrawSkeleton,
		Transliterate: cfg.Overlay.UseTransliteration,
	}
	ws, err := e.builder.Build(set, opts)
	if err != nil {
		var seq uint64
		if last := e.store.Latest(); last != nil {
			seq = last.Seq
		}
		e.ev.CycleFailure(seq+1, err)
		return err
	}
	e.store.Publish(ws)

	focused := e.window.Focused()
	e.stepTrigger(now, cfg, ws, focused)
	e.stepAutomation(now, set, cfg, ws, focused)
	return nil
}

func (e *Engine) stepTrigger(now time.Time, cfg *config.Config, ws *snapshot.WorldSnapshot, focused bool) {
	if !cfg.Trigger.Enabled || !focused {
		e.trig.Reset()
		e.trigToggled = false
		e.trigKeyWasDown = false
		return
	}

	keyDown := false
	if vk, err := input.ParseKey(cfg.Trigger.TriggerKey); err == nil {
		keyDown = e.kb.IsDown(vk)
	}

	armed := keyDown
	if cfg.Trigger.ToggleMode {
		if keyDown && !e.trigKeyWasDown {
			e.trigToggled = !e.trigToggled
		}
		armed = e.trigToggled
	}
	e.trigKeyWasDown = keyDown

	e.trig.Step(now, armed, ws, cfg.Trigger)
}

func (e *Engine) stepAutomation(now time.Time, set *offsets.Set, cfg *config.Config, ws *snapshot.WorldSnapshot, focused bool) {
	base := e.proc.ModuleBase()

	if cfg.Bunnyhop.Enabled && focused {
		held := false
		if vk, err := input.ParseKey(cfg.Bunnyhop.JumpKey); err == nil {
			held = e.kb.IsDown(vk)
		}
		if err := e.hop.Step(now, set, base, ws, held, cfg.Bunnyhop.Delay(), cfg.Bunnyhop.UseMemoryWrite); err != nil {
			e.ev.FeatureSuspended("bunnyhop", err)
		}
	} else if e.hop.Pressed() {
		if err := e.hop.Release(set, base); err != nil {
			e.ev.FeatureSuspended("bunnyhop", err)
		}
	}

	if cfg.NoFlash.Enabled && focused {
		if err := e.flash.Step(set, ws, cfg.NoFlash.SuppressionStrength); err != nil {
			e.ev.FeatureSuspended("noflash", err)
		}
	}
}

// quiesce disarms every consumer: the snapshot is cleared so the overlay goes
// dark within one cycle, the trigger machine and its toggle latch reset, and
// any held jump input is released.
func (e *Engine) quiesce() {
	e.store.Clear()
	e.trig.Reset()
	e.trigToggled = false
	e.trigKeyWasDown = false
	if set, err := e.catalog.Current(); err == nil {
		_ = e.hop.Release(set, e.proc.ModuleBase())
	} else {
		_ = e.hop.Release(nil, 0)
	}
}

// suspend runs when snapshot builds keep failing while the process stays
// alive. The module base is re-read in case the client module was remapped;
// the next successful cycle brings the features back.
func (e *Engine) suspend(cause error) {
	e.quiesce()
	e.ev.FeatureSuspended("snapshot", cause)
	if err := e.proc.RefreshModuleBase(); err != nil {
		e.log.Warn().Err(err).Msg("module base refresh failed")
	}
}

// teardown runs on handle loss or shutdown: quiesce the consumers and release
// the process handle.
func (e *Engine) teardown(cause error) {
	e.quiesce()
	e.proc.Close()
	if cause != nil {
		e.ev.HandleLost(cause)
	}
}

// refreshOffsetsLoop refetches the catalog on an interval.
func (e *Engine) refreshOffsetsLoop(ctx context.Context) {
	ticker := time.NewTicker(offsetsRefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.catalog.Refresh(ctx); err != nil {
				e.log.Warn().Err(err).Msg("offsets refresh failed")
			}
		}
	}
}
