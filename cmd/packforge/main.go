// Command packforge runs the full load pipeline over a content root and
// prints what it discovered. It is a reference driver: real hosts embed the
// orchestrator and supply their own patch engine.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	packforge "github.com/packforge/packforge"
)

// slogLogger adapts log/slog to the loader's Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// loggingEngine is a stand-in patch engine whose patches only announce
// their activation. It lets the pipeline be exercised end to end without a
// real bytecode engine attached.
type loggingEngine struct {
	logger packforge.Logger
}

type loggingPatch struct {
	owner  *packforge.Participant
	module string
	early  bool
	logger packforge.Logger
}

func (p *loggingPatch) Owner() *packforge.Participant { return p.owner }

func (p *loggingPatch) Apply() error {
	kind := "patch"
	if p.early {
		kind = "early patch"
	}
	p.logger.Info("Activated "+kind, "module", p.module, "participant", p.owner.DisplayName())
	return nil
}

func (e *loggingEngine) LoadEarlyPatch(owner *packforge.Participant, m *packforge.ResolvedModule) (packforge.EarlyPatch, error) {
	return &loggingPatch{owner: owner, module: m.Name, early: true, logger: e.logger}, nil
}

func (e *loggingEngine) LoadPatch(owner *packforge.Participant, m *packforge.ResolvedModule) (packforge.Patch, error) {
	return &loggingPatch{owner: owner, module: m.Name, logger: e.logger}, nil
}

func main() {
	root := flag.String("root", ".", "content root (gamepacks/, mods/, config/)")
	hostDir := flag.String("host-modules", "", "directory of host module files (optional)")
	verbose := flag.Bool("verbose", false, "include debug output")
	flag.Parse()

	var logger packforge.Logger = &slogLogger{logger: slog.New(slog.NewTextHandler(os.Stderr, nil))}
	if !*verbose {
		logger = packforge.NewLevelFilter(logger, packforge.LevelInfo)
	}

	var hostSrc packforge.ModuleSource
	if *hostDir != "" {
		hostSrc = packforge.DirModuleSource{Dir: *hostDir}
	}

	orch := packforge.NewOrchestrator(
		packforge.NewStdLocationResolver(*root),
		hostSrc,
		&loggingEngine{logger: logger},
	)
	orch.AttachLogSink(logger)

	if err := orch.FullLoad(); err != nil {
		fmt.Fprintln(os.Stderr, "load failed:", err)
		os.Exit(1)
	}

	for _, p := range orch.Participants() {
		kind := "mod"
		if p.IsGamePack {
			kind = "game pack"
		}
		fmt.Printf("%-9s %s (early=%d patches=%d)\n",
			kind, p.DisplayName(), len(p.EarlyPatches), len(p.Patches))
	}

	orch.Shutdown()
}
