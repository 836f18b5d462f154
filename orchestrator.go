// Package packforge is a mod-loading orchestrator for a host application.
// It discovers participant archives (game packs and ordinary mods), drives
// them through a fixed multi-phase lifecycle interleaving pre-load module
// patching with post-load behavioral patching, and owns the concurrency-safe
// module resolution pools patch code looks modules up in.
//
// Basic usage:
//
//	orch := packforge.NewOrchestrator(locations, hostModules, engine)
//	orch.AttachLogSink(logger)
//	if err := orch.FullLoad(); err != nil {
//		log.Fatal(err)
//	}
//	defer orch.Shutdown()
package packforge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
)

// PipelineState identifies how far the full-load pipeline has advanced.
// When driven through FullLoad each state is reachable only from its
// predecessor; the individual stage methods remain callable in any order at
// the caller's risk.
type PipelineState int

const (
	StateCreated PipelineState = iota
	StateLocationsEnsured
	StateGamePacksDiscovered
	StateModsDiscovered
	StateGamePackEarlyPatchesLoaded
	StateGamePackEarlyPatchesRun
	StateModEarlyPatchesLoaded
	StateModEarlyPatchesRun
	StateHostModulesResolved
	StateGamePackPatchesLoaded
	StateGamePackPatchesRun
	StateModPatchesLoaded
	StateModPatchesRun
	StateRunning
)

var pipelineStateNames = map[PipelineState]string{
	StateCreated:                    "Created",
	StateLocationsEnsured:           "LocationsEnsured",
	StateGamePacksDiscovered:        "GamePacksDiscovered",
	StateModsDiscovered:             "ModsDiscovered",
	StateGamePackEarlyPatchesLoaded: "GamePackEarlyPatchesLoaded",
	StateGamePackEarlyPatchesRun:    "GamePackEarlyPatchesRun",
	StateModEarlyPatchesLoaded:      "ModEarlyPatchesLoaded",
	StateModEarlyPatchesRun:         "ModEarlyPatchesRun",
	StateHostModulesResolved:        "HostModulesResolved",
	StateGamePackPatchesLoaded:      "GamePackPatchesLoaded",
	StateGamePackPatchesRun:         "GamePackPatchesRun",
	StateModPatchesLoaded:           "ModPatchesLoaded",
	StateModPatchesRun:              "ModPatchesRun",
	StateRunning:                    "Running",
}

func (s PipelineState) String() string {
	if name, ok := pipelineStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PipelineState(%d)", int(s))
}

// orchestratorConfigFile is the orchestrator's own scope file within the
// resolver's config directory.
const orchestratorConfigFile = "packforge.yaml"

// Orchestrator is the root coordinator. It owns the participant set, both
// module resolution pools, the deferred log buffer and its own config
// scope, and drives the fixed load pipeline.
//
// The pipeline itself runs on a single goroutine; the pools and
// ResolveModule tolerate concurrent callers because patch activations may
// look modules up while resolution of other identities is still in flight.
type Orchestrator struct {
	logger    *DeferredLogger
	locations LocationResolver
	engine    PatchEngine
	hostSrc   ModuleSource

	hostPool  *ModulePool
	patchPool *ModulePool

	// resolveMu is the single mutual-exclusion domain covering both pools'
	// lookup paths. It is independent of each pool's internal write path,
	// so holding it through a blocking wait cannot deadlock LoadAll.
	resolveMu sync.Mutex

	config     *ConfigScope
	serializer *Serializer

	mu           sync.Mutex
	participants []*Participant
	byPath       map[string]*Participant
	state        PipelineState

	autosave *autosaver
}

// NewOrchestrator constructs the orchestrator. The location resolver and
// patch engine are required collaborators; hostSrc provides the host's own
// modules for ResolveHostModules and may be nil when the embedding host
// resolves its modules elsewhere.
//
// The orchestrator's own config scope is loaded here; a load failure is
// logged and the scope starts empty.
func NewOrchestrator(locations LocationResolver, hostSrc ModuleSource, engine PatchEngine) *Orchestrator {
	logger := NewDeferredLogger()
	o := &Orchestrator{
		logger:     logger,
		locations:  locations,
		engine:     engine,
		hostSrc:    hostSrc,
		hostPool:   NewModulePool("host", logger),
		patchPool:  NewModulePool("patch", logger),
		serializer: NewSerializer(),
		byPath:     make(map[string]*Participant),
		state:      StateCreated,
	}
	o.config = NewConfigScope("packforge", filepath.Join(locations.ConfigPath(), orchestratorConfigFile), logger)
	if err := o.config.Load(); err != nil {
		logger.Error("Failed to load orchestrator config", "error", err)
	}
	return o
}

// Logger returns the orchestrator's logger. Until a sink is attached,
// entries buffer in order; nothing is dropped.
func (o *Orchestrator) Logger() Logger { return o.logger }

// AttachLogSink attaches the host's logger, draining everything buffered so
// far in original order.
func (o *Orchestrator) AttachLogSink(sink Logger) { o.logger.AttachSink(sink) }

// Config returns the orchestrator's own configuration scope.
func (o *Orchestrator) Config() *ConfigScope { return o.config }

// Serializer returns the shared pluggable-converter serializer participants
// may reuse for their own data.
func (o *Orchestrator) Serializer() *Serializer { return o.serializer }

// HostPool returns the host-module resolution pool.
func (o *Orchestrator) HostPool() *ModulePool { return o.hostPool }

// PatchPool returns the patch-module resolution pool.
func (o *Orchestrator) PatchPool() *ModulePool { return o.patchPool }

// State returns the current pipeline state.
func (o *Orchestrator) State() PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s PipelineState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("Pipeline state advanced", "state", s.String())
}

// Participants returns all loaded participants in load order.
func (o *Orchestrator) Participants() []*Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Participant, len(o.participants))
	copy(out, o.participants)
	return out
}

// GamePacks returns the game-pack partition of the participant set.
func (o *Orchestrator) GamePacks() []*Participant {
	return o.filterParticipants(true)
}

// Mods returns the ordinary-mod partition of the participant set.
func (o *Orchestrator) Mods() []*Participant {
	return o.filterParticipants(false)
}

func (o *Orchestrator) filterParticipants(gamePacks bool) []*Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*Participant
	for _, p := range o.participants {
		if p.IsGamePack == gamePacks {
			out = append(out, p)
		}
	}
	return out
}

// EnsureLocations creates the game-pack directory, every mod location and
// the config directory if absent. Individual creation failures are logged,
// never fatal: a missing location simply contributes no candidates later.
func (o *Orchestrator) EnsureLocations() {
	paths := []string{o.locations.GamePackPath(), o.locations.ConfigPath()}
	for _, loc := range o.locations.ModLocations() {
		paths = append(paths, loc.Path())
	}
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil {
			o.logger.Error("Failed to create location", "path", path, "error", err)
		}
	}
}

// LoadParticipant opens the archive at path, binds a Participant to it and
// registers it in the participant set. I/O failures propagate; the caller
// decides retry policy. Loading the same path twice is an error.
func (o *Orchestrator) LoadParticipant(path string, isGamePack bool) (*Participant, error) {
	o.mu.Lock()
	if _, ok := o.byPath[path]; ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrParticipantExists, path)
	}
	o.mu.Unlock()

	p, err := newParticipant(path, isGamePack, o.locations.ConfigPath(), o.logger)
	if err != nil {
		return nil, err
	}
	if err := p.Config.Load(); err != nil {
		o.logger.Warn("Participant config failed to load, starting empty",
			"participant", p.DisplayName(), "error", err)
	}

	o.mu.Lock()
	o.participants = append(o.participants, p)
	o.byPath[path] = p
	o.mu.Unlock()

	o.logger.Info("Loaded participant", "path", path, "gamePack", isGamePack)
	return p, nil
}

// TryLoadParticipant is the non-throwing form of LoadParticipant used by
// bulk discovery: any failure is logged with the triggering path and
// reported as absent, so one unreadable file never aborts a batch.
func (o *Orchestrator) TryLoadParticipant(path string, isGamePack bool) *Participant {
	if _, err := os.Stat(path); err != nil {
		o.logger.Error("Participant archive not accessible", "path", path, "error", err)
		return nil
	}
	p, err := o.LoadParticipant(path, isGamePack)
	if err != nil {
		o.logger.Error("Failed to load participant", "path", path, "error", err)
		return nil
	}
	return p
}

// TryLoadMod reports whether the archive at path loaded successfully. It
// never returns an error; failures are logged.
func (o *Orchestrator) TryLoadMod(path string, isGamePack bool) bool {
	return o.TryLoadParticipant(path, isGamePack) != nil
}

// LoadAllGamePacks enumerates the fixed game-pack directory, top level
// only, and try-loads every matching archive. Returns the participants that
// loaded; order follows the enumeration.
func (o *Orchestrator) LoadAllGamePacks() []*Participant {
	return o.loadFromLocation(DirLocation{Dir: o.locations.GamePackPath()}, true)
}

// LoadAllMods enumerates every configured mod location and try-loads each
// candidate. A location whose enumeration fails is logged and contributes
// zero candidates; the other locations still contribute.
func (o *Orchestrator) LoadAllMods() []*Participant {
	var loaded []*Participant
	for _, loc := range o.locations.ModLocations() {
		loaded = append(loaded, o.loadFromLocation(loc, false)...)
	}
	return loaded
}

func (o *Orchestrator) loadFromLocation(loc ModLocation, isGamePack bool) []*Participant {
	candidates, err := loc.Enumerate()
	if err != nil {
		o.logger.Error("Search location enumeration failed", "path", loc.Path(), "error", err)
		return nil
	}
	var loaded []*Participant
	for _, path := range candidates {
		if p := o.TryLoadParticipant(path, isGamePack); p != nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// LoadEarlyPatches instructs each participant to populate its early-patch
// list from its own patch-module content. A failure is recorded on the
// participant and logged; the stage continues with the rest.
func (o *Orchestrator) LoadEarlyPatches(participants []*Participant) {
	for _, p := range participants {
		o.mu.Lock()
		err := p.loadEarlyPatches(o.patchPool, o.engine)
		o.mu.Unlock()
		if err != nil {
			o.logger.Error("Failed to load early patches",
				"participant", p.DisplayName(), "error", err)
		}
	}
}

// RunEarlyPatches activates each participant's early patches in declared
// order. An activation failure aborts the participant's remaining early
// patches and propagates: early patches rewrite not-yet-loaded host module
// content, and continuing after a partial failure would hand every later
// stage an inconsistent host.
func (o *Orchestrator) RunEarlyPatches(participants []*Participant) error {
	for _, p := range participants {
		for _, ep := range p.EarlyPatches {
			if err := ep.Apply(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrEarlyPatchFailed, p.DisplayName(), err)
			}
		}
	}
	return nil
}

// LoadPatches instructs each participant to populate its regular-patch
// list. Same isolation contract as LoadEarlyPatches.
func (o *Orchestrator) LoadPatches(participants []*Participant) {
	for _, p := range participants {
		o.mu.Lock()
		err := p.loadPatches(o.patchPool, o.engine)
		o.mu.Unlock()
		if err != nil {
			o.logger.Error("Failed to load patches",
				"participant", p.DisplayName(), "error", err)
		}
	}
}

// RunPatches activates each participant's regular patches in declared
// order. Unlike RunEarlyPatches every activation is individually isolated:
// a failure (or panic, since patch code is third-party) is logged with the
// patch type and the owning participant's display name, and execution
// continues with the next patch and the next participant.
func (o *Orchestrator) RunPatches(participants []*Participant) {
	for _, p := range participants {
		for _, patch := range p.Patches {
			o.runPatchIsolated(p, patch)
		}
	}
}

func (o *Orchestrator) runPatchIsolated(p *Participant, patch Patch) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Patch activation panicked",
				"patch", fmt.Sprintf("%T", patch),
				"participant", p.DisplayName(),
				"panic", r)
		}
	}()
	if err := patch.Apply(); err != nil {
		o.logger.Error("Patch activation failed",
			"patch", fmt.Sprintf("%T", patch),
			"participant", p.DisplayName(),
			"error", err)
	}
}

// ResolveHostModules resolves every host module through the host pool,
// applying whatever the early patches already did to module content.
// Per-module failures are recorded in the pool and do not abort the batch.
func (o *Orchestrator) ResolveHostModules() error {
	if o.hostSrc == nil {
		o.logger.Debug("No host module source configured, skipping host resolution")
		return nil
	}
	return o.hostPool.LoadAll(o.hostSrc)
}

// FullLoad runs the entire pipeline once, in the fixed order: ensure
// locations, discover game packs then mods, load+run game-pack early
// patches then mod early patches, resolve host modules, load+run game-pack
// patches then mod patches. Game packs are fully processed before mods at
// every stage.
//
// The only failure that escapes is an early-patch activation error;
// everything else is isolated and logged.
func (o *Orchestrator) FullLoad() error {
	if state := o.State(); state != StateCreated {
		return fmt.Errorf("%w: full load from state %s", ErrStageOutOfOrder, state)
	}

	o.EnsureLocations()
	o.setState(StateLocationsEnsured)

	o.LoadAllGamePacks()
	o.setState(StateGamePacksDiscovered)
	o.LoadAllMods()
	o.setState(StateModsDiscovered)

	gamePacks := o.GamePacks()
	mods := o.Mods()

	o.LoadEarlyPatches(gamePacks)
	o.setState(StateGamePackEarlyPatchesLoaded)
	if err := o.RunEarlyPatches(gamePacks); err != nil {
		return err
	}
	o.setState(StateGamePackEarlyPatchesRun)

	o.LoadEarlyPatches(mods)
	o.setState(StateModEarlyPatchesLoaded)
	if err := o.RunEarlyPatches(mods); err != nil {
		return err
	}
	o.setState(StateModEarlyPatchesRun)

	if err := o.ResolveHostModules(); err != nil {
		o.logger.Error("Host module enumeration failed", "error", err)
	}
	o.setState(StateHostModulesResolved)

	o.LoadPatches(gamePacks)
	o.setState(StateGamePackPatchesLoaded)
	o.RunPatches(gamePacks)
	o.setState(StateGamePackPatchesRun)

	o.LoadPatches(mods)
	o.setState(StateModPatchesLoaded)
	o.RunPatches(mods)
	o.setState(StateModPatchesRun)

	o.setState(StateRunning)
	o.logger.Info("Full load complete",
		"gamePacks", len(gamePacks), "mods", len(mods))
	return nil
}

// Shutdown persists the orchestrator's own configuration, then every
// participant's. Each save is independently isolated; failures are
// aggregated and logged as one batch, never escalated.
func (o *Orchestrator) Shutdown() {
	if o.autosave != nil {
		o.autosave.stop()
	}

	var errs error
	if err := o.config.Save(); err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, p := range o.Participants() {
		if err := p.Config.Save(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("participant %s: %w", p.DisplayName(), err))
		}
	}
	if errs != nil {
		o.logger.Error("Shutdown persistence failures",
			"failures", len(multierr.Errors(errs)), "error", errs)
	} else {
		o.logger.Info("Shutdown complete, configuration persisted")
	}
}
