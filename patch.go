package packforge

// EarlyPatch is a patch behavior that activates before the host's own
// modules are resolved into memory. Early patches rewrite module content
// prior to load, so the pipeline runs every participant's early patches
// strictly before ResolveHostModules.
//
// An early-patch activation failure propagates: the remaining early patches
// of the owning participant are skipped and the error escapes the run stage.
// Partial early patching can leave host module content inconsistent for
// everything downstream, so the pipeline prefers to stop.
type EarlyPatch interface {
	// Owner returns the participant this patch belongs to.
	Owner() *Participant

	// Apply activates the patch.
	Apply() error
}

// Patch is a patch behavior that activates after host modules are resolved.
// It operates on live, loaded behavior; a failure is participant-local and
// the run stage isolates it, logs it, and continues.
type Patch interface {
	// Owner returns the participant this patch belongs to.
	Owner() *Participant

	// Apply activates the patch.
	Apply() error
}

// PatchEngine instantiates patch behaviors from patch-module content.
// How a patch rewrites a module is the engine's business; the loader only
// sequences activations. Hosts supply an engine when constructing the
// Orchestrator.
type PatchEngine interface {
	// LoadEarlyPatch constructs the early patches declared by a patch module.
	LoadEarlyPatch(owner *Participant, module *ResolvedModule) (EarlyPatch, error)

	// LoadPatch constructs the regular patches declared by a patch module.
	LoadPatch(owner *Participant, module *ResolvedModule) (Patch, error)
}
