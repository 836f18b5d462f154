package packforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gamePackDir(root string) string { return filepath.Join(root, "gamepacks") }
func modDir(root string) string      { return filepath.Join(root, "mods") }

func TestTryLoadParticipantNonexistentPath(t *testing.T) {
	orch, _, sink := newTestOrchestrator(t, nil)

	p := orch.TryLoadParticipant("/nowhere/ghost.pak", false)
	assert.Nil(t, p)
	assert.Equal(t, 1, sink.countMessages("error", "Participant archive not accessible"))
	assert.Empty(t, orch.Participants())
}

func TestTryLoadModReportsOutcome(t *testing.T) {
	orch, _, _, root := newTestOrchestratorAt(t, nil)
	path := writePak(t, modDir(root), "good.pak", map[string]string{
		manifestFile: pakManifest("Good", nil, nil),
	})

	assert.True(t, orch.TryLoadMod(path, false))
	assert.False(t, orch.TryLoadMod("/nowhere/ghost.pak", false))
	assert.Len(t, orch.Participants(), 1)
}

func TestLoadParticipantRejectsDuplicatePath(t *testing.T) {
	orch, _, _, root := newTestOrchestratorAt(t, nil)
	path := writePak(t, modDir(root), "one.pak", map[string]string{
		manifestFile: pakManifest("One", nil, nil),
	})

	_, err := orch.LoadParticipant(path, false)
	require.NoError(t, err)

	_, err = orch.LoadParticipant(path, false)
	require.ErrorIs(t, err, ErrParticipantExists)
	assert.Len(t, orch.Participants(), 1)
}

func TestLoadAllGamePacksSkipsCorruptArchive(t *testing.T) {
	orch, _, sink, root := newTestOrchestratorAt(t, nil)
	writePak(t, gamePackDir(root), "x.pak", map[string]string{
		manifestFile: pakManifest("X", nil, nil),
	})
	require.NoError(t, writeFile(filepath.Join(gamePackDir(root), "y.pak"), "corrupt"))

	loaded := orch.LoadAllGamePacks()

	require.Len(t, loaded, 1)
	assert.Equal(t, filepath.Join(gamePackDir(root), "x.pak"), loaded[0].Path)
	assert.True(t, loaded[0].IsGamePack)
	assert.Equal(t, 1, sink.countMessages("error", "Failed to load participant"))
}

func TestLoadAllModsToleratesFailingLocation(t *testing.T) {
	orch, _, sink, root := newTestOrchestratorAt(t, nil)
	resolver := orch.locations.(*StdLocationResolver)
	resolver.ExtraMod = append(resolver.ExtraMod, DirLocation{Dir: filepath.Join(root, "missing-location")})
	writePak(t, modDir(root), "m.pak", map[string]string{
		manifestFile: pakManifest("M", nil, nil),
	})

	loaded := orch.LoadAllMods()

	require.Len(t, loaded, 1)
	assert.Equal(t, 1, sink.countMessages("error", "Search location enumeration failed"))
}

func TestParticipantSetPartitionsByFlag(t *testing.T) {
	orch, _, _, root := newTestOrchestratorAt(t, nil)
	writePak(t, gamePackDir(root), "gp.pak", map[string]string{
		manifestFile: pakManifest("GP", nil, nil),
	})
	writePak(t, modDir(root), "m1.pak", map[string]string{
		manifestFile: pakManifest("M1", nil, nil),
	})
	writePak(t, modDir(root), "m2.pak", map[string]string{
		manifestFile: pakManifest("M2", nil, nil),
	})

	orch.LoadAllGamePacks()
	orch.LoadAllMods()

	assert.Len(t, orch.GamePacks(), 1)
	assert.Len(t, orch.Mods(), 2)
	assert.Len(t, orch.Participants(), 3)
}

func TestFullLoadProcessesGamePacksBeforeMods(t *testing.T) {
	orch, engine, _, root := newTestOrchestratorAt(t, nil)
	writePak(t, gamePackDir(root), "pack.pak", map[string]string{
		manifestFile: pakManifest("PackA", []string{"gp/e.bin"}, []string{"gp/p.bin"}),
		"gp/e.bin":   "x",
		"gp/p.bin":   "x",
	})
	writePak(t, modDir(root), "mod.pak", map[string]string{
		manifestFile: pakManifest("ModB", []string{"mod/e.bin"}, []string{"mod/p.bin"}),
		"mod/e.bin":  "x",
		"mod/p.bin":  "x",
	})

	require.NoError(t, orch.FullLoad())

	assert.Equal(t, []string{
		"early:PackA:gp/e.bin",
		"early:ModB:mod/e.bin",
		"patch:PackA:gp/p.bin",
		"patch:ModB:mod/p.bin",
	}, engine.activationLog())
	assert.Equal(t, StateRunning, orch.State())
}

func TestFullLoadRefusesSecondInvocation(t *testing.T) {
	orch, _, _, _ := newTestOrchestratorAt(t, nil)
	require.NoError(t, orch.FullLoad())

	err := orch.FullLoad()
	require.ErrorIs(t, err, ErrStageOutOfOrder)
}

func TestRunEarlyPatchesAbortsAndPropagates(t *testing.T) {
	orch, engine, _, root := newTestOrchestratorAt(t, nil)
	writePak(t, modDir(root), "mod.pak", map[string]string{
		manifestFile: pakManifest("Brittle", []string{"e1.bin", "e2.bin", "e3.bin"}, nil),
		"e1.bin":     "x",
		"e2.bin":     "x",
		"e3.bin":     "x",
	})
	engine.fail["e2.bin"] = true

	mods := orch.LoadAllMods()
	orch.LoadEarlyPatches(mods)

	err := orch.RunEarlyPatches(mods)
	require.ErrorIs(t, err, ErrEarlyPatchFailed)
	require.ErrorIs(t, err, errActivationBoom)

	// e1 ran, e2 failed, e3 never activated.
	assert.Equal(t, []string{"early:Brittle:e1.bin"}, engine.activationLog())
}

func TestRunPatchesIsolatesFailuresAndContinues(t *testing.T) {
	orch, engine, sink, root := newTestOrchestratorAt(t, nil)
	writePak(t, modDir(root), "a.pak", map[string]string{
		manifestFile: pakManifest("ModA", nil, []string{"a1.bin", "a2.bin", "a3.bin"}),
		"a1.bin":     "x",
		"a2.bin":     "x",
		"a3.bin":     "x",
	})
	writePak(t, modDir(root), "b.pak", map[string]string{
		manifestFile: pakManifest("ModB", nil, []string{"b1.bin"}),
		"b1.bin":     "x",
	})
	engine.fail["a2.bin"] = true

	mods := orch.LoadAllMods()
	orch.LoadPatches(mods)
	orch.RunPatches(mods)

	assert.Equal(t, []string{
		"patch:ModA:a1.bin",
		"patch:ModA:a3.bin",
		"patch:ModB:b1.bin",
	}, engine.activationLog())
	assert.Equal(t, 1, sink.countMessages("error", "Patch activation failed"))
}

func TestRunPatchesRecoversPanics(t *testing.T) {
	orch, engine, sink, root := newTestOrchestratorAt(t, nil)
	writePak(t, modDir(root), "p.pak", map[string]string{
		manifestFile: pakManifest("Panicky", nil, []string{"boom.bin", "calm.bin"}),
		"boom.bin":   "x",
		"calm.bin":   "x",
	})
	engine.panics["boom.bin"] = true

	mods := orch.LoadAllMods()
	orch.LoadPatches(mods)
	orch.RunPatches(mods)

	assert.Equal(t, []string{"patch:Panicky:calm.bin"}, engine.activationLog())
	assert.Equal(t, 1, sink.countMessages("error", "Patch activation panicked"))
}

func TestLoadEarlyPatchesRecordsFailureAndContinues(t *testing.T) {
	orch, _, sink, root := newTestOrchestratorAt(t, nil)
	writePak(t, modDir(root), "broken.pak", map[string]string{
		manifestFile: pakManifest("Broken", []string{"gone.bin"}, nil),
	})
	writePak(t, modDir(root), "ok.pak", map[string]string{
		manifestFile: pakManifest("OK", []string{"ok.bin"}, nil),
		"ok.bin":     "x",
	})

	mods := orch.LoadAllMods()
	orch.LoadEarlyPatches(mods)

	assert.Equal(t, 1, sink.countMessages("error", "Failed to load early patches"))

	var broken, ok *Participant
	for _, p := range mods {
		switch p.DisplayName() {
		case "Broken":
			broken = p
		case "OK":
			ok = p
		}
	}
	require.NotNil(t, broken)
	require.NotNil(t, ok)
	require.ErrorIs(t, broken.LoadError(), ErrPatchModuleMissing)
	assert.Len(t, ok.EarlyPatches, 1)
	assert.NoError(t, ok.LoadError())
}

func TestEnsureLocationsCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	resolver := NewStdLocationResolver(root)
	orch := NewOrchestrator(resolver, nil, newRecordingEngine())

	orch.EnsureLocations()

	for _, path := range []string{resolver.GamePackPath(), resolver.ConfigPath(), filepath.Join(root, "mods")} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.True(t, info.IsDir())
	}
}

func TestShutdownIsolatesAndAggregatesSaveFailures(t *testing.T) {
	orch, _, sink, root := newTestOrchestratorAt(t, nil)
	for _, name := range []string{"p1.pak", "p2.pak", "p3.pak"} {
		writePak(t, modDir(root), name, map[string]string{
			manifestFile: pakManifest(name, nil, nil),
		})
	}
	mods := orch.LoadAllMods()
	require.Len(t, mods, 3)

	// Point the middle participant's scope at a directory so its save fails.
	blocked := filepath.Join(root, "blocked-config")
	require.NoError(t, os.MkdirAll(blocked, 0o755))
	mods[1].Config = NewConfigScope("p2", blocked, orch.Logger())

	orch.Shutdown()

	assert.Equal(t, 1, sink.countMessages("error", "Shutdown persistence failures"))

	// The other participants still persisted.
	for _, p := range []*Participant{mods[0], mods[2]} {
		_, err := os.Stat(p.Config.Path())
		assert.NoError(t, err, p.DisplayName())
	}
}

func TestShutdownPersistsOrchestratorConfig(t *testing.T) {
	orch, _, sink, _ := newTestOrchestratorAt(t, nil)
	orch.Config().Set("lastLoad", "complete")

	orch.Shutdown()

	assert.Equal(t, 1, sink.countMessages("info", "Shutdown complete"))
	data, err := os.ReadFile(orch.Config().Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "lastLoad")
}
