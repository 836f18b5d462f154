package packforge

// PoolTag identifies which resolution pool served a cross-pool lookup.
type PoolTag int

const (
	PoolNone PoolTag = iota
	PoolHost
	PoolPatch
)

func (t PoolTag) String() string {
	switch t {
	case PoolHost:
		return "host"
	case PoolPatch:
		return "patch"
	default:
		return "none"
	}
}

// ResolveModule answers "which pool, if either, holds this identity",
// trying the host pool's blocking wait first and the patch pool's second.
// Both lookups happen under one mutual-exclusion scope so two concurrent
// callers can never observe inconsistent interleavings of "not yet in the
// host pool" and "now in the patch pool".
//
// The call blocks for the duration of any in-flight resolution of name in
// either pool. The lookup mutex is independent of each pool's write path
// (registration uses the pool's internal lock and a channel handshake), so
// blocking here cannot deadlock a concurrent LoadAll.
func (o *Orchestrator) ResolveModule(name string) (PoolTag, *ResolvedModule, bool) {
	o.resolveMu.Lock()
	defer o.resolveMu.Unlock()

	if m, ok := o.hostPool.TryWaitForResolution(name); ok {
		return PoolHost, m, true
	}
	if m, ok := o.patchPool.TryWaitForResolution(name); ok {
		return PoolPatch, m, true
	}
	return PoolNone, nil, false
}
