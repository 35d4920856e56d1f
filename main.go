package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"violetwing/automation"
	"violetwing/config"
	"violetwing/engine"
	"violetwing/events"
	"violetwing/input"
	"violetwing/offsets"
	"violetwing/overlay"
	"violetwing/process"
	"violetwing/snapshot"
	"violetwing/trigger"
)

const offsetsCacheFile = "offsets_cache.json"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfgMgr, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg := cfgMgr.Current()
	cfgMgr.Watch(func(*config.Config) {
		log.Info().Msg("config reloaded")
	})

	ev := events.NewEmitter(log.Logger)

	catalog := offsets.NewCatalog(
		offsets.NewHTTPSource(""),
		offsetsCacheFile,
		cfg.General.GameBuild,
	)
	refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 60*time.Second)
	if err := catalog.Refresh(refreshCtx); err != nil {
		if set, cerr := catalog.Current(); cerr == nil {
			ev.OffsetsFallback(err, set.Build)
		} else {
			log.Fatal().Err(err).Msg("no offsets available")
		}
	} else if set, cerr := catalog.Current(); cerr == nil {
		ev.OffsetsRefreshed(set.Build, set.Len())
	}
	cancelRefresh()

	window, err := overlay.NewGameWindow(cfg.General.WindowTitle)
	if err != nil {
		log.Fatal().Err(err).Msg("bad window title")
	}

	proc := process.NewManager()
	store := snapshot.NewStore()
	kb := input.NewSystem()

	eng := engine.New(engine.Deps{
		Config:   cfgMgr,
		Process:  proc,
		Catalog:  catalog,
		Store:    store,
		Window:   window,
		Keyboard: kb,
		Trigger:  trigger.NewMachine(kb, rand.New(rand.NewSource(time.Now().UnixNano())), ev),
		Bunnyhop: automation.NewBunnyhop(proc, kb),
		NoFlash:  automation.NewNoFlash(proc),
		Events:   ev,
		Log:      log.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("engine stopped")
		}
	}()

	// The renderer must own the main goroutine.
	renderer := overlay.NewRenderer(store, func() config.OverlayConfig {
		return cfgMgr.Current().Overlay
	}, window)
	if err := renderer.Run(cfg.Overlay.TargetFPS); err != nil {
		log.Fatal().Err(err).Msg("overlay stopped")
	}
}
