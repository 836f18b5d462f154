package packforge

import (
	"errors"
)

// Loader errors
var (
	// Resolution pool errors
	ErrDuplicateResolution = errors.New("module identity already resolved")
	ErrModuleNotResolved   = errors.New("module resolution failed")

	// Participant errors
	ErrParticipantExists     = errors.New("participant already loaded")
	ErrManifestMissing       = errors.New("participant manifest not found")
	ErrManifestInvalid       = errors.New("participant manifest invalid")
	ErrPatchModuleMissing    = errors.New("patch module not found in archive")
	ErrParticipantLoadFailed = errors.New("participant failed to load patches")
	ErrArchiveUnreadable     = errors.New("participant archive unreadable")

	// Pipeline errors
	ErrEarlyPatchFailed   = errors.New("early patch activation failed")
	ErrStageOutOfOrder    = errors.New("pipeline stage invoked out of order")
	ErrLocationUnreadable = errors.New("search location unreadable")

	// Configuration errors
	ErrConfigScopeNil    = errors.New("config scope is nil")
	ErrConfigSaveFailed  = errors.New("config scope save failed")
	ErrConfigPathEmpty   = errors.New("config scope has no file path")
	ErrConfigFeederError = errors.New("config feeder error")

	// Serializer errors
	ErrConverterNil       = errors.New("converter is nil")
	ErrConverterDuplicate = errors.New("converter already registered for type")
	ErrConverterTargetNil = errors.New("converter target type is nil")

	// Notification errors
	ErrSubscriberNil = errors.New("subscriber is nil")
)
