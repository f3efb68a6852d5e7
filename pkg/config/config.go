// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development.
//
// Each struct type is parsed once per process and cached; repeated Load
// calls for the same type return the cached copy. Fields are annotated with
// `env` and `envDefault` tags understood by caarlos0/env.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer    = errors.New("config: nil pointer passed to Load")
	ErrParsingConfig = errors.New("config: failed to parse environment")
)

var (
	mu     sync.Mutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg. The first call for a given
// struct type does the work; later calls return the cached value so every
// consumer observes the same configuration.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}

	// The .env file is optional; a missing file is not an error.
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	key := typeName[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := loaded[key]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	loaded[key] = *cfg
	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Reset drops all cached configuration. Intended for tests that mutate the
// environment between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = make(map[string]any)
}

func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
