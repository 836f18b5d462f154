package feeders

import "github.com/golobby/config/v3/pkg/feeder"

// EnvFeeder feeds bound structs from environment variables. Config scopes
// apply it after the file feeder so the environment wins over file values.
type EnvFeeder struct {
	feeder.Env
}

// NewEnvFeeder creates a new EnvFeeder that reads from environment variables.
func NewEnvFeeder() EnvFeeder {
	return EnvFeeder{}
}
