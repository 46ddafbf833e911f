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
	mu     sync.RWMutex
	cache  = make(map[string]any)
	envDoc sync.Once
)

// Load populates the provided configuration struct from environment
// variables. The default .env file is loaded once per process (missing files
// are ignored); after that, parsing is driven by `env` field tags.
//
// Each configuration type is parsed once and cached, so repeated calls for
// the same type are cheap and observe the same values.
//
// Example:
//
//	type HubConfig struct {
//		URL       string        `env:"HUB_URL,required"`
//		KeepAlive time.Duration `env:"HUB_KEEPALIVE" envDefault:"15s"`
//	}
//
//	var cfg HubConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	envDoc.Do(func() {
		// The .env file is optional; absence is not an error.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Re-check under the write lock; another goroutine may have won.
	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	cache[key] = *v
	return nil
}

// MustLoad works like Load but panics if loading fails. Intended for
// configurations the client cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load required configuration: %v", err))
	}
}

// LoadEnv loads one or more specific .env files before any config parsing.
// Later files take precedence over earlier ones. Unlike the implicit default
// load, a missing file here is an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return godotenv.Load()
	}
	// godotenv.Load does not override already-set variables, so apply in
	// reverse to give the last file precedence.
	for i := len(paths) - 1; i >= 0; i-- {
		if err := godotenv.Load(paths[i]); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}
	return nil
}

// ResetCache clears cached configuration values. Primarily for tests that
// mutate the environment between loads.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cache = make(map[string]any)
}

// typeName returns a string identifier for the generic type T.
func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
