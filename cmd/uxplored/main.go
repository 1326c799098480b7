// Command uxplored runs one LLM-guided UI exploration session against a
// connected Android device, following the teacher's flag-parse /
// config-load / signal-bound run-loop shape (cmd/server/main.go), adapted
// since this engine drives a device rather than serving HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smilemakc/uxplore/internal/application/controller"
	"github.com/smilemakc/uxplore/internal/application/coverage"
	"github.com/smilemakc/uxplore/internal/application/explorer"
	"github.com/smilemakc/uxplore/internal/application/llmagent"
	"github.com/smilemakc/uxplore/internal/application/session"
	"github.com/smilemakc/uxplore/internal/config"
	"github.com/smilemakc/uxplore/internal/infrastructure/device"
	"github.com/smilemakc/uxplore/internal/infrastructure/llm"
	"github.com/smilemakc/uxplore/internal/infrastructure/observer"
	"github.com/smilemakc/uxplore/internal/infrastructure/storage"
	"github.com/smilemakc/uxplore/internal/infrastructure/transcript"
	"github.com/smilemakc/uxplore/internal/domain/devicestate"
	"github.com/smilemakc/uxplore/internal/domain/utg"
)

func main() {
	var (
		once        = flag.Bool("once", false, "capture a single state and exit, without dispatching an event")
		serial      = flag.String("serial", "", "adb device serial (defaults to adb's own single-device default)")
		appPackage  = flag.String("package", "", "app package under test")
		outputDir   = flag.String("output", "./uxplore-output", "directory for the transcript, snapshot and coverage log")
		observePort = flag.String("observe-port", "", "serve a websocket observer feed on this port (empty disables it)")
		store       = flag.String("store", "memory", "run snapshot persistence backend: memory or postgres")
	)
	flag.Parse()

	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	log.Info().Str("app", cfg.AppName).Str("package", *appPackage).Msg("starting uxplore")

	u := utg.New(*appPackage, false)

	var oracle llmagent.Oracle
	if cfg.OpenAIAPIKey != "" {
		oracle = llm.NewOracle(cfg.OpenAIAPIKey)
	}

	if oracle == nil {
		log.Warn().Msg("no OPENAI_API_KEY configured: the LLM agent will fail every prompt")
	}

	tr, err := transcript.New(*outputDir, cfg.AppName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open transcript")
	}

	agent := llmagent.New(oracle, tr, u, cfg.AppName, cfg.AppDescription)

	sess := session.New(*appPackage)
	agent.SetCorrelationSource(sess)
	log.Info().Str("run_id", sess.ID).Msg("exploration run assigned id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutdown signal received, finishing current step")
		cancel()
	}()

	monitor, deadline := buildCoverageMonitor(ctx, cfg, *outputDir)

	drv := device.NewADBDriver(*serial)
	expl := explorer.NewGreedy(u, time.Now().UnixNano())

	ctl := controller.New(u, agent, monitor, deadline, expl)

	var hub *observer.Hub
	if *observePort != "" {
		hub = observer.NewHub(log.Logger)
		go hub.Run()
		ctl.SetBroadcaster(hub)
		serveObserver(hub, *observePort)
	}

	go agent.Run(ctx)

	snapshotWriter := storage.NewSnapshotWriter(*outputDir, *appPackage)
	runStore := buildStore(cfg, *store)

	steps := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("steps", steps).Msg("exploration stopped")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			persistFinalSnapshot(shutdownCtx, runStore, snapshotWriter, u, sess.ID)
			shutdownCancel()
			emitEnded(hub, u)
			return
		default:
		}

		snap, err := drv.Capture(ctx)
		var state *devicestate.DeviceState
		if err != nil {
			log.Warn().Err(err).Msg("capture failed, recovering with BACK")
			state = nil
		} else {
			state = devicestate.New(snap.Views, snap.ForegroundActivity, snap.ActivityStack)
		}

		if state == nil {
			steps++
			if *once {
				return
			}
			continue
		}

		e := ctl.NextEvent(ctx, state)
		if err := snapshotWriter.Write(u); err != nil {
			log.Warn().Err(err).Msg("failed to write utg snapshot")
		}

		if *once {
			log.Info().Int("state_id", state.ID()).Str("mode", ctl.Mode().String()).Msg("single-step smoke run complete")
			return
		}

		if err := drv.Send(ctx, e, state); err != nil {
			log.Warn().Err(err).Msg("send failed, next capture will recover")
		}
		steps++
	}
}

func buildCoverageMonitor(ctx context.Context, cfg *config.Config, outputDir string) (*coverage.Monitor, *coverage.Deadline) {
	deadline := coverage.NewDeadline(time.Duration(cfg.GuidanceIntervalSeconds) * time.Second)

	switch cfg.CoverageMode {
	case config.CoverageModeMethodLog:
		src := coverage.NewMethodLogSource(cfg.CoverageTag, cfg.CoverageTotalMethods)
		src.StartListening(ctx)
		return coverage.New(src, outputDir, 10, 0.01, 1.5), deadline
	case config.CoverageModeBytecode:
		log.Warn().Msg("bytecode coverage mode requires an embedder-supplied BytecodeComputer; falling back to time-only deadline")
		return nil, deadline
	default:
		src := coverage.NewTimeSource(time.Duration(cfg.GuidanceIntervalSeconds) * time.Second)
		return coverage.New(src, outputDir, 10, 0.01, 1.5), deadline
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: time.Kitchen})
	}
}

func serveObserver(hub *observer.Hub, port string) {
	handler := observer.NewHandler(hub, observer.NewNoAuth(), log.Logger)
	go func() {
		log.Info().Str("port", port).Msg("serving websocket observer feed")
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			log.Error().Err(err).Msg("observer feed server stopped")
		}
	}()
}

// buildStore picks BunStore when -store=postgres, the in-memory default
// otherwise, mirroring the teacher's storage selection (cmd/server/main.go
// constructs a BunStore unconditionally; here it is optional since most
// runs are short-lived and local).
func buildStore(cfg *config.Config, backend string) storage.Store {
	if backend != "postgres" {
		return storage.NewMemoryStore()
	}
	bunStore := storage.NewBunStore(cfg.DatabaseDSN)
	if err := bunStore.InitSchema(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to init postgres schema, falling back to in-memory store")
		return storage.NewMemoryStore()
	}
	return bunStore
}

func persistFinalSnapshot(ctx context.Context, store storage.Store, w *storage.SnapshotWriter, u *utg.UTG, runID string) {
	snap, err := w.ToRunSnapshot(runID, u)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build final run snapshot")
		return
	}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("failed to persist final run snapshot")
	}
}

func emitEnded(hub *observer.Hub, u *utg.UTG) {
	if hub == nil {
		return
	}
	feed := observer.NewFeed(observer.EventExplorationEnded)
	feed.Message = "exploration run finished"
	hub.Broadcast(feed)
}
