package packforge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"github.com/golobby/config/v3"
	"gopkg.in/yaml.v3"

	"github.com/packforge/packforge/feeders"
)

// ConfigProvider defines the interface for providing configuration objects
type ConfigProvider interface {
	// GetConfig returns the configuration object
	GetConfig() any
}

// StdConfigProvider provides a standard implementation of ConfigProvider
type StdConfigProvider struct {
	cfg any
}

// GetConfig returns the configuration object
func (s *StdConfigProvider) GetConfig() any {
	return s.cfg
}

// NewStdConfigProvider creates a new standard configuration provider
func NewStdConfigProvider(cfg any) *StdConfigProvider {
	return &StdConfigProvider{cfg: cfg}
}

// ConfigScope is one owned configuration unit: the orchestrator has one,
// and every participant has its own. A scope is backed by a single YAML or
// TOML file, holds loosely typed values, can feed a bound struct, and saves
// itself at shutdown.
//
// Mutations fire the scope's own change event first, then the global
// ConfigChanges hook.
type ConfigScope struct {
	name   string
	path   string
	logger Logger

	mu       sync.RWMutex
	values   map[string]any
	target   any
	sections map[string]any
	changes  *ChangeNotifier
}

// ComplexFeeder extends the golobby feeder contract with key-scoped
// feeding: FeedKey populates target from a single top-level section of the
// backing file. The yaml and toml feeders implement it; the env feeder does
// not, so section binds never see environment overlays.
type ComplexFeeder interface {
	Feed(structure interface{}) error
	FeedKey(key string, target interface{}) error
}

// NewConfigScope creates a scope named name backed by the file at path.
// The file need not exist yet; Load treats a missing file as empty.
func NewConfigScope(name, path string, logger Logger) *ConfigScope {
	return &ConfigScope{
		name:    name,
		path:    path,
		logger:  logger,
		values:  make(map[string]any),
		changes: NewChangeNotifier(),
	}
}

// Name returns the scope name.
func (s *ConfigScope) Name() string { return s.name }

// Path returns the backing file path.
func (s *ConfigScope) Path() string { return s.path }

// Changes returns the scope's own change notifier. The global ConfigChanges
// hook fires after it on every mutation.
func (s *ConfigScope) Changes() *ChangeNotifier { return s.changes }

// Bind associates a struct with the scope. Load feeds it through the
// golobby config pipeline in addition to populating the value map.
func (s *ConfigScope) Bind(target any) *ConfigScope {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	return s
}

// BindSection associates a struct with one top-level section of the backing
// file. Load feeds it through the feeder's key-scoped path, so several
// structs can share one file without seeing each other's sections.
func (s *ConfigScope) BindSection(section string, target any) *ConfigScope {
	s.mu.Lock()
	if s.sections == nil {
		s.sections = make(map[string]any)
	}
	s.sections[section] = target
	s.mu.Unlock()
	return s
}

// GetConfig implements ConfigProvider over the bound struct, or the raw
// value map when nothing is bound.
func (s *ConfigScope) GetConfig() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.target != nil {
		return s.target
	}
	return s.values
}

// Load reads the backing file. A missing file leaves the scope empty and is
// not an error; a malformed file is.
func (s *ConfigScope) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("Config scope file absent, starting empty", "scope", s.name, "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("config scope %s: %w", s.name, err)
	}

	values := make(map[string]any)
	switch filepath.Ext(s.path) {
	case ".toml":
		if err := toml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("%w: scope %s: %w", ErrConfigFeederError, s.name, err)
		}
	default:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("%w: scope %s: %w", ErrConfigFeederError, s.name, err)
		}
	}

	s.mu.Lock()
	s.values = values
	target := s.target
	sections := make(map[string]any, len(s.sections))
	for k, v := range s.sections {
		sections[k] = v
	}
	s.mu.Unlock()

	if target != nil {
		if err := s.feedTarget(target); err != nil {
			return err
		}
	}
	for section, tgt := range sections {
		if err := s.feedSection(section, tgt); err != nil {
			return err
		}
	}
	return nil
}

// feedTarget runs the bound struct through golobby config with the feeder
// matching the file extension.
func (s *ConfigScope) feedTarget(target any) error {
	c := config.New()
	switch filepath.Ext(s.path) {
	case ".toml":
		c.AddFeeder(feeders.NewTomlFeeder(s.path))
	default:
		c.AddFeeder(feeders.NewYamlFeeder(s.path))
	}
	// Environment variables override file values for bound structs.
	c.AddFeeder(feeders.NewEnvFeeder())
	if err := c.AddStruct(target).Feed(); err != nil {
		return fmt.Errorf("%w: scope %s: %w", ErrConfigFeederError, s.name, err)
	}
	return nil
}

// feedSection populates target from one top-level section of the backing
// file via the matching feeder's key-scoped path.
func (s *ConfigScope) feedSection(section string, target any) error {
	var f ComplexFeeder
	switch filepath.Ext(s.path) {
	case ".toml":
		f = feeders.NewTomlFeeder(s.path)
	default:
		f = feeders.NewYamlFeeder(s.path)
	}
	if err := f.FeedKey(section, target); err != nil {
		return fmt.Errorf("%w: scope %s section %s: %w", ErrConfigFeederError, s.name, section, err)
	}
	return nil
}

// Get returns the raw value stored under key.
func (s *ConfigScope) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key coerced to a string. String
// coercion of scalar values follows golobby cast semantics, so values
// written by hand as numbers or booleans still read cleanly.
func (s *ConfigScope) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	if str, isStr := v.(string); isStr {
		return str, true
	}
	converted, err := cast.FromType(fmt.Sprintf("%v", v), reflect.TypeOf(""))
	if err != nil {
		return "", false
	}
	return converted.(string), true
}

// GetInt returns the value under key coerced to an int.
func (s *ConfigScope) GetInt(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	if n, isInt := v.(int); isInt {
		return n, true
	}
	converted, err := cast.FromType(fmt.Sprintf("%v", v), reflect.TypeOf(0))
	if err != nil {
		return 0, false
	}
	return converted.(int), true
}

// GetBool returns the value under key coerced to a bool.
func (s *ConfigScope) GetBool(key string) (bool, bool) {
	v, ok := s.Get(key)
	if !ok {
		return false, false
	}
	if b, isBool := v.(bool); isBool {
		return b, true
	}
	converted, err := cast.FromType(fmt.Sprintf("%v", v), reflect.TypeOf(false))
	if err != nil {
		return false, false
	}
	return converted.(bool), true
}

// Set stores value under key and fires the scope's change event followed by
// the global ConfigChanges hook.
func (s *ConfigScope) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	s.fireChanged(key)
}

// Reload re-reads the backing file and fires change notifications. Used by
// the config watcher when the file is rewritten externally.
func (s *ConfigScope) Reload() error {
	if err := s.Load(); err != nil {
		return err
	}
	s.fireChanged("")
	return nil
}

func (s *ConfigScope) fireChanged(key string) {
	ctx := context.Background()
	event := newConfigChangedEvent(s.name, key)
	if err := s.changes.Notify(ctx, event); err != nil {
		s.logger.Error("Config change subscriber failures", "scope", s.name, "error", err)
	}
	if err := ConfigChanges.Notify(ctx, event); err != nil {
		s.logger.Error("Global config change subscriber failures", "scope", s.name, "error", err)
	}
}

// Save persists the value map to the backing file, creating the parent
// directory if needed. The format follows the file extension.
func (s *ConfigScope) Save() error {
	if s.path == "" {
		return fmt.Errorf("%w: scope %s", ErrConfigPathEmpty, s.name)
	}

	s.mu.RLock()
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	s.mu.RUnlock()

	var data []byte
	var err error
	switch filepath.Ext(s.path) {
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(values)
		data = buf.Bytes()
	default:
		data, err = yaml.Marshal(values)
	}
	if err != nil {
		return fmt.Errorf("%w: scope %s: %w", ErrConfigSaveFailed, s.name, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: scope %s: %w", ErrConfigSaveFailed, s.name, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: scope %s: %w", ErrConfigSaveFailed, s.name, err)
	}
	return nil
}
