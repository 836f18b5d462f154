package packforge

import (
	"fmt"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"
)

// Converter translates values of one concrete type to and from their
// serialized representation. Participants ship converters for their own
// config and data types and register them with the shared Serializer.
type Converter interface {
	// TargetType returns the concrete type this converter handles.
	TargetType() reflect.Type

	// Encode turns a value of the target type into a plainly serializable
	// representation.
	Encode(value any) (any, error)

	// Decode rebuilds a value of the target type from its serialized
	// representation.
	Decode(raw any) (any, error)
}

// IgnorableConverter marks a converter type that bulk registration must
// skip. Embed or implement it on converters that exist as templates or
// that a participant registers manually under a different type.
type IgnorableConverter interface {
	IgnoreConverter()
}

// Serializer marshals values to YAML with pluggable per-type converters
// applied first. One instance is owned by the Orchestrator and shared with
// participants; registration is concurrency-safe.
type Serializer struct {
	mu         sync.RWMutex
	converters map[reflect.Type]Converter
}

// NewSerializer creates a serializer with no converters registered.
func NewSerializer() *Serializer {
	return &Serializer{converters: make(map[reflect.Type]Converter)}
}

// RegisterConverter registers a single converter under its own target type.
// Registering a second converter for the same type is an error.
func (s *Serializer) RegisterConverter(c Converter) error {
	if c == nil {
		return ErrConverterNil
	}
	return s.RegisterConverterForType(c.TargetType(), c)
}

// RegisterConverterForType registers c under an explicit target type,
// overriding the converter's own declaration. Useful when one converter
// implementation serves several alias types.
func (s *Serializer) RegisterConverterForType(t reflect.Type, c Converter) error {
	if c == nil {
		return ErrConverterNil
	}
	if t == nil {
		return ErrConverterTargetNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.converters[t]; ok {
		return fmt.Errorf("%w: %s", ErrConverterDuplicate, t)
	}
	s.converters[t] = c
	return nil
}

// RegisterConvertersFrom scans candidates for eligible converters and
// registers each, skipping any that implements the IgnorableConverter
// marker and any whose target type already has a converter. Returns how
// many were registered. This is the bulk form participants use to hand
// over everything a package declares in one call.
func (s *Serializer) RegisterConvertersFrom(candidates ...any) int {
	registered := 0
	for _, candidate := range candidates {
		c, ok := candidate.(Converter)
		if !ok {
			continue
		}
		if _, ignored := candidate.(IgnorableConverter); ignored {
			continue
		}
		if err := s.RegisterConverter(c); err == nil {
			registered++
		}
	}
	return registered
}

// converterFor returns the converter registered for v's type, if any.
func (s *Serializer) converterFor(v any) (Converter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.converters[reflect.TypeOf(v)]
	return c, ok
}

// Marshal serializes v to YAML, applying a registered converter to the
// value first when one matches its concrete type.
func (s *Serializer) Marshal(v any) ([]byte, error) {
	if c, ok := s.converterFor(v); ok {
		encoded, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("converter for %T: %w", v, err)
		}
		v = encoded
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializing %T: %w", v, err)
	}
	return data, nil
}

// UnmarshalAs deserializes data and rebuilds a value of target's type
// through its registered converter. Without a converter the raw decoded
// value is returned as-is.
func (s *Serializer) UnmarshalAs(data []byte, target reflect.Type) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("deserializing: %w", err)
	}
	s.mu.RLock()
	c, ok := s.converters[target]
	s.mu.RUnlock()
	if !ok {
		return raw, nil
	}
	value, err := c.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("converter for %s: %w", target, err)
	}
	return value, nil
}
