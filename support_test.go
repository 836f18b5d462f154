package packforge

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errActivationBoom = errors.New("activation boom")

// logRecord is one captured log entry.
type logRecord struct {
	level string
	msg   string
	args  []any
}

// recordLogger captures entries for assertions. Safe for concurrent use.
type recordLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recordLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *recordLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *recordLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }
func (l *recordLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *recordLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }

func (l *recordLogger) snapshot() []logRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]logRecord, len(l.records))
	copy(out, l.records)
	return out
}

// countMessages returns how many entries at level contain substr in the message.
func (l *recordLogger) countMessages(level, substr string) int {
	n := 0
	for _, r := range l.snapshot() {
		if r.level == level && strings.Contains(r.msg, substr) {
			n++
		}
	}
	return n
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// buildPak writes a zip archive named name under dir with the given files.
func buildPak(dir, name string, files map[string]string) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	zw := zip.NewWriter(f)
	for fname, content := range files {
		w, err := zw.Create(fname)
		if err != nil {
			return "", err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// writePak is buildPak with test plumbing.
func writePak(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path, err := buildPak(dir, name, files)
	require.NoError(t, err)
	return path
}

// pakManifest renders a manifest.yaml body.
func pakManifest(name string, early, patches []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\nversion: 1.0.0\n", name)
	b.WriteString("early_patches:\n")
	for _, e := range early {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	b.WriteString("patches:\n")
	for _, p := range patches {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	return b.String()
}

// recordingEngine instantiates stub patches that append their activations
// to a shared ordered list. Module names listed in fail trigger an
// activation error; names in panics trigger a panic.
type recordingEngine struct {
	mu          sync.Mutex
	activations []string
	fail        map[string]bool
	panics      map[string]bool
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{
		fail:   make(map[string]bool),
		panics: make(map[string]bool),
	}
}

func (e *recordingEngine) record(entry string) {
	e.mu.Lock()
	e.activations = append(e.activations, entry)
	e.mu.Unlock()
}

func (e *recordingEngine) activationLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.activations))
	copy(out, e.activations)
	return out
}

type stubPatch struct {
	engine *recordingEngine
	owner  *Participant
	module string
	early  bool
}

func (p *stubPatch) Owner() *Participant { return p.owner }

func (p *stubPatch) Apply() error {
	if p.engine.panics[p.module] {
		panic("patch panic: " + p.module)
	}
	if p.engine.fail[p.module] {
		return fmt.Errorf("%w: %s", errActivationBoom, p.module)
	}
	kind := "patch"
	if p.early {
		kind = "early"
	}
	p.engine.record(kind + ":" + p.owner.DisplayName() + ":" + p.module)
	return nil
}

func (e *recordingEngine) LoadEarlyPatch(owner *Participant, m *ResolvedModule) (EarlyPatch, error) {
	return &stubPatch{engine: e, owner: owner, module: m.Name, early: true}, nil
}

func (e *recordingEngine) LoadPatch(owner *Participant, m *ResolvedModule) (Patch, error) {
	return &stubPatch{engine: e, owner: owner, module: m.Name}, nil
}

// newTestOrchestrator builds an orchestrator over a fresh temp root with a
// recording engine and a capturing log sink attached.
func newTestOrchestrator(t *testing.T, hostSrc ModuleSource) (*Orchestrator, *recordingEngine, *recordLogger) {
	t.Helper()
	orch, engine, sink, _ := newTestOrchestratorAt(t, hostSrc)
	return orch, engine, sink
}

// newTestOrchestratorAt additionally returns the content root so tests can
// place archives before discovery runs.
func newTestOrchestratorAt(t *testing.T, hostSrc ModuleSource) (*Orchestrator, *recordingEngine, *recordLogger, string) {
	t.Helper()
	root := t.TempDir()
	resolver := NewStdLocationResolver(root)
	require.NoError(t, os.MkdirAll(resolver.GamePackPath(), 0o755))
	for _, loc := range resolver.ModLocations() {
		require.NoError(t, os.MkdirAll(loc.Path(), 0o755))
	}
	engine := newRecordingEngine()
	orch := NewOrchestrator(resolver, hostSrc, engine)
	sink := &recordLogger{}
	orch.AttachLogSink(sink)
	return orch, engine, sink, root
}
