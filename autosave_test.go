package packforge

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableAutosaveRejectsBadSchedule(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, nil)
	require.Error(t, orch.EnableAutosave("not a schedule"))
}

func TestEnableAutosaveStartsAndStops(t *testing.T) {
	orch, _, sink := newTestOrchestrator(t, nil)
	require.NoError(t, orch.EnableAutosave("* * * * *"))
	assert.Equal(t, 1, sink.countMessages("info", "Config autosave enabled"))

	orch.Shutdown()
}

func TestAutosaveAllPersistsScopes(t *testing.T) {
	orch, _, _, root := newTestOrchestratorAt(t, nil)
	writePak(t, modDir(root), "auto.pak", map[string]string{
		manifestFile: pakManifest("Auto", nil, nil),
	})
	mods := orch.LoadAllMods()
	require.Len(t, mods, 1)
	mods[0].Config.Set("persisted", true)

	orch.autosaveAll()

	_, err := os.Stat(mods[0].Config.Path())
	assert.NoError(t, err)
}
