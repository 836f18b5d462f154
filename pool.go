package packforge

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ResolvedModule is the in-memory representation of a module after
// resolution. Data holds the module content as handed to the patch engine;
// early patches may have rewritten it before it was registered here.
type ResolvedModule struct {
	Name string
	Data []byte
}

// ModuleSource enumerates and loads the modules a pool resolves during
// LoadAll. The host-module source and each participant's patch-module
// content both satisfy this interface.
type ModuleSource interface {
	// ModuleNames returns the identities of every module this source provides.
	ModuleNames() ([]string, error)

	// LoadModule loads a single module by identity.
	LoadModule(name string) (*ResolvedModule, error)
}

// poolEntry tracks one identity. done is closed exactly once, when the
// resolution attempt completes; module/err are written before the close.
type poolEntry struct {
	done   chan struct{}
	module *ResolvedModule
	err    error
}

func (e *poolEntry) completed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// ModulePool is a concurrent registry mapping module identities to their
// resolved representations. Resolution is write-once per identity: the first
// Register wins and every later attempt fails with ErrDuplicateResolution.
//
// Consumers racing population use TryWaitForResolution, which blocks only
// while a resolution for that identity is actually in flight. A lookup never
// triggers resolution; an identity nobody ever requested reports absent
// immediately.
//
// The loader owns two instances: one for the host's own modules and one for
// participants' patch modules. See Orchestrator.ResolveModule for the
// cross-pool lookup.
type ModulePool struct {
	name   string
	logger Logger

	mu      sync.Mutex
	entries map[string]*poolEntry
}

// NewModulePool creates an empty pool. The name tags log entries so the two
// pool instances are distinguishable.
func NewModulePool(name string, logger Logger) *ModulePool {
	return &ModulePool{
		name:    name,
		logger:  logger,
		entries: make(map[string]*poolEntry),
	}
}

// Register inserts a resolved module under its identity. It fails with
// ErrDuplicateResolution if the identity already completed resolution,
// whatever the outcome. Waiters blocked on the identity wake with the
// registered module.
func (p *ModulePool) Register(name string, module *ResolvedModule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[name]
	if !ok {
		e = &poolEntry{done: make(chan struct{})}
		p.entries[name] = e
	}
	if e.completed() {
		return fmt.Errorf("%w: %s (pool %s)", ErrDuplicateResolution, name, p.name)
	}
	e.module = module
	close(e.done)
	return nil
}

// TryWaitForResolution returns the resolved module for name. If resolution
// already completed it returns immediately; if a resolution is in flight it
// blocks until that attempt completes, then returns its outcome; if the
// identity was never requested it returns absent without blocking.
//
// There is no timeout: a caller blocks for as long as the in-flight
// resolution runs. The pool's lock is not held while waiting, so Register
// and LoadAll proceed freely.
func (p *ModulePool) TryWaitForResolution(name string) (*ResolvedModule, bool) {
	p.mu.Lock()
	e, ok := p.entries[name]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	<-e.done
	if e.module == nil {
		return nil, false
	}
	return e.module, true
}

// ResolutionError returns the failure recorded for name during LoadAll, or
// nil if the identity resolved successfully or was never requested.
func (p *ModulePool) ResolutionError(name string) error {
	p.mu.Lock()
	e, ok := p.entries[name]
	p.mu.Unlock()
	if !ok || !e.completed() {
		return nil
	}
	return e.err
}

// Resolved returns the identities that have successfully resolved, sorted.
func (p *ModulePool) Resolved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.entries))
	for name, e := range p.entries {
		if e.completed() && e.module != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LoadAll resolves every module the source provides. Identities are marked
// in flight up front so concurrent TryWaitForResolution callers block
// instead of reporting absent, then resolved concurrently on a worker pool.
//
// A failure for one identity is recorded on that identity and logged; it
// never aborts the rest of the batch. Only a source enumeration failure is
// returned to the caller.
func (p *ModulePool) LoadAll(source ModuleSource) error {
	names, err := source.ModuleNames()
	if err != nil {
		return fmt.Errorf("pool %s: enumerating modules: %w", p.name, err)
	}
	sort.Strings(names)

	pending := make([]string, 0, len(names))
	p.mu.Lock()
	for _, name := range names {
		if _, ok := p.entries[name]; ok {
			continue
		}
		p.entries[name] = &poolEntry{done: make(chan struct{})}
		pending = append(pending, name)
	}
	p.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(pending) {
		workers = len(pending)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		// Degraded but correct: resolve on the calling goroutine.
		for _, name := range pending {
			p.resolveOne(source, name)
		}
		return nil
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, name := range pending {
		name := name
		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.resolveOne(source, name)
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return nil
}

// resolveOne loads a single identity and completes its entry, waking any
// blocked waiters. The entry is guaranteed in flight and owned by this call.
func (p *ModulePool) resolveOne(source ModuleSource, name string) {
	module, err := source.LoadModule(name)

	p.mu.Lock()
	e := p.entries[name]
	if e.completed() {
		// Registered out of band while we were loading; first write wins.
		p.mu.Unlock()
		return
	}
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %w", ErrModuleNotResolved, name, err)
	} else {
		e.module = module
	}
	close(e.done)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Module resolution failed", "pool", p.name, "module", name, "error", err)
	} else {
		p.logger.Debug("Module resolved", "pool", p.name, "module", name)
	}
}
