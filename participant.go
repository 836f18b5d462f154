package packforge

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// manifestFile is the fixed manifest path inside a participant archive.
const manifestFile = "manifest.yaml"

// Manifest describes a participant's content: its display name, version and
// the patch modules it ships, each a file path inside the archive. Module
// paths double as resolution identities in the patch-module pool.
type Manifest struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	EarlyPatches []string `yaml:"early_patches"`
	Patches      []string `yaml:"patches"`
}

// Participant is a loaded extension unit: either an ordinary mod or a game
// pack, distinguished solely by the IsGamePack flag. Both variants share one
// shape; game packs are simply processed before mods at every pipeline stage.
//
// A participant belongs to exactly one Orchestrator and is never removed
// once added. Its patch lists stay empty until the corresponding
// patch-loading stage runs.
type Participant struct {
	// Path is the participant's identity: the archive file it was loaded from.
	Path string

	// IsGamePack marks host-integration content processed before ordinary mods.
	IsGamePack bool

	// InstanceID uniquely identifies this load within the process.
	InstanceID string

	// EarlyPatches holds the declared pre-load patch behaviors, in manifest order.
	EarlyPatches []EarlyPatch

	// Patches holds the declared post-load patch behaviors, in manifest order.
	Patches []Patch

	// Config is the participant's owned configuration scope.
	Config *ConfigScope

	archive fs.FS

	manifestOnce sync.Once
	manifest     *Manifest
	manifestErr  error

	// loadErr records a patch-loading failure for this participant. The
	// stage that hit it continues with other participants; the error stays
	// queryable here.
	loadErr error
}

// newParticipant opens the archive at path as a virtual filesystem and
// binds a Participant to it. Contents are not validated beyond archive
// openability; manifest problems surface later, when patch loading reads it.
func newParticipant(path string, isGamePack bool, configDir string, logger Logger) (*Participant, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveUnreadable, path, err)
	}

	p := &Participant{
		Path:       path,
		IsGamePack: isGamePack,
		InstanceID: uuid.New().String(),
		archive:    &rc.Reader,
	}

	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	p.Config = NewConfigScope(stem, filepath.Join(configDir, stem+".yaml"), logger)
	return p, nil
}

// Archive returns the participant's content as a read-only filesystem.
func (p *Participant) Archive() fs.FS {
	return p.archive
}

// DisplayName returns the manifest name when available, falling back to the
// archive file name. Safe to call before the manifest has been read.
func (p *Participant) DisplayName() string {
	if p.manifest != nil && p.manifest.Name != "" {
		return p.manifest.Name
	}
	return filepath.Base(p.Path)
}

// LoadError returns the patch-loading failure recorded for this
// participant, or nil.
func (p *Participant) LoadError() error {
	return p.loadErr
}

// Manifest reads and caches manifest.yaml from the archive.
func (p *Participant) Manifest() (*Manifest, error) {
	p.manifestOnce.Do(func() {
		data, err := fs.ReadFile(p.archive, manifestFile)
		if err != nil {
			p.manifestErr = fmt.Errorf("%w: %s", ErrManifestMissing, p.Path)
			return
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			p.manifestErr = fmt.Errorf("%w: %s: %w", ErrManifestInvalid, p.Path, err)
			return
		}
		p.manifest = &m
	})
	return p.manifest, p.manifestErr
}

// loadEarlyPatches populates the EarlyPatch list from the manifest's
// early-patch modules, registering each module into pool and asking engine
// to instantiate the behavior. The first failure is recorded on the
// participant and returned; patches loaded before it remain.
func (p *Participant) loadEarlyPatches(pool *ModulePool, engine PatchEngine) error {
	m, err := p.Manifest()
	if err != nil {
		p.loadErr = err
		return err
	}
	for _, name := range m.EarlyPatches {
		module, err := p.loadPatchModule(pool, name)
		if err != nil {
			p.loadErr = err
			return err
		}
		ep, err := engine.LoadEarlyPatch(p, module)
		if err != nil {
			p.loadErr = fmt.Errorf("%w: %s: early patch %s: %w", ErrParticipantLoadFailed, p.DisplayName(), name, err)
			return p.loadErr
		}
		p.EarlyPatches = append(p.EarlyPatches, ep)
	}
	return nil
}

// loadPatches is the regular-patch counterpart of loadEarlyPatches.
func (p *Participant) loadPatches(pool *ModulePool, engine PatchEngine) error {
	m, err := p.Manifest()
	if err != nil {
		p.loadErr = err
		return err
	}
	for _, name := range m.Patches {
		module, err := p.loadPatchModule(pool, name)
		if err != nil {
			p.loadErr = err
			return err
		}
		patch, err := engine.LoadPatch(p, module)
		if err != nil {
			p.loadErr = fmt.Errorf("%w: %s: patch %s: %w", ErrParticipantLoadFailed, p.DisplayName(), name, err)
			return p.loadErr
		}
		p.Patches = append(p.Patches, patch)
	}
	return nil
}

// loadPatchModule reads one patch-module file from the archive and registers
// it in the patch-module pool. Re-registration of an identity another
// participant already claimed fails; the conflict is reported to the caller.
func (p *Participant) loadPatchModule(pool *ModulePool, name string) (*ResolvedModule, error) {
	data, err := fs.ReadFile(p.archive, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrPatchModuleMissing, name, p.Path)
	}
	module := &ResolvedModule{Name: name, Data: data}
	if err := pool.Register(name, module); err != nil {
		return nil, err
	}
	return module, nil
}
