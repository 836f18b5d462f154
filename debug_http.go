package packforge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// participantInfo is the wire shape of one participant on the debug surface.
type participantInfo struct {
	Path        string `json:"path"`
	DisplayName string `json:"displayName"`
	GamePack    bool   `json:"gamePack"`
	EarlyPatch  int    `json:"earlyPatches"`
	Patches     int    `json:"patches"`
	LoadError   string `json:"loadError,omitempty"`
}

// DebugHandler returns an HTTP handler exposing loader introspection:
//
//	GET /debug/pipeline     — current pipeline state
//	GET /debug/participants — the participant set with patch counts
//	GET /debug/modules      — resolved identities per pool
//
// Hosts mount it on whatever server they already run; the loader never
// listens on its own.
func (o *Orchestrator) DebugHandler() http.Handler {
	r := chi.NewRouter()

	r.Get("/debug/pipeline", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"state": o.State().String()})
	})

	r.Get("/debug/participants", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, o.participantSnapshot())
	})

	r.Get("/debug/modules", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string][]string{
			"host":  o.hostPool.Resolved(),
			"patch": o.patchPool.Resolved(),
		})
	})

	return r
}

// participantSnapshot copies the debug-visible participant state under the
// orchestrator lock. Patch-list population happens under the same lock, so
// the handler can be mounted while a load is still in progress.
func (o *Orchestrator) participantSnapshot() []participantInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	infos := make([]participantInfo, 0, len(o.participants))
	for _, p := range o.participants {
		info := participantInfo{
			Path:        p.Path,
			DisplayName: p.DisplayName(),
			GamePack:    p.IsGamePack,
			EarlyPatch:  len(p.EarlyPatches),
			Patches:     len(p.Patches),
		}
		if err := p.LoadError(); err != nil {
			info.LoadError = err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
