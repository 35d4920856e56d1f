// Package events is the status sink for the core loops. It emits discrete
// events through zerolog; formatting, rotation and persistence belong to
// whoever configured the logger.
package events

import (
	"time"

	"github.com/rs/zerolog"
)

type Emitter struct {
	log zerolog.Logger
}

func NewEmitter(log zerolog.Logger) *Emitter {
	return &Emitter{log: log}
}

func (e *Emitter) HandleAcquired(pid uint32, moduleBase uintptr) {
	e.log.Info().Uint32("pid", pid).Uint64("module_base", uint64(moduleBase)).Msg("process handle acquired")
}

func (e *Emitter) HandleLost(err error) {
	e.log.Warn().Err(err).Msg("process handle lost")
}

func (e *Emitter) OffsetsRefreshed(build string, count int) {
	e.log.Info().Str("build", build).Int("entries", count).Msg("offsets refreshed")
}

func (e *Emitter) OffsetsStale(err error) {
	e.log.Error().Err(err).Msg("no usable offset set")
}

func (e *Emitter) OffsetsFallback(err error, build string) {
	e.log.Warn().Err(err).Str("cached_build", build).Msg("offset fetch failed, using cached set")
}

func (e *Emitter) CycleFailure(seq uint64, err error) {
	e.log.Debug().Uint64("seq", seq).Err(err).Msg("snapshot cycle failed")
}

func (e *Emitter) TriggerFired(weapon string, delay time.Duration) {
	e.log.Info().Str("weapon", weapon).Dur("delay", delay).Msg("trigger fired")
}

func (e *Emitter) FeatureSuspended(name string, err error) {
	e.log.Warn().Str("feature", name).Err(err).Msg("feature suspended")
}
