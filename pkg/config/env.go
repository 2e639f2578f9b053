package config

import (
	"fmt"
	"time"
)

type ConfigMap map[string]interface{}

// EnvConfig contains the environment configuration. It is populated by
// coalescing values from these sources, in descending order of precedence:
//
//  1. environment variables.
//  2. .env.toml.
//  3. default fallbacks.
type EnvConfig struct {
	dirs Directories

	Daemon DaemonConfig `toml:"daemon"`
	Client ClientConfig `toml:"client"`
	Sync   SyncConfig   `toml:"sync"`

	// FailPoints are configuration requests applied when the daemon starts,
	// keyed by fail point name.
	FailPoints map[string]ConfigMap `toml:"failpoints"`
}

func (e EnvConfig) Dirs() Directories {
	return e.dirs
}

type DaemonConfig struct {
	Listen string `toml:"listen" validate:"required,hostname_port"`
	// Store is the path of the leveldb database holding applied
	// configurations. Defaults to <home>/store.
	Store        string `toml:"store"`
	Persist      bool   `toml:"persist"`
	Metrics      bool   `toml:"metrics"`
	AutoRegister bool   `toml:"auto_register"`
}

type ClientConfig struct {
	Endpoint string `toml:"endpoint" validate:"required"`
}

type SyncConfig struct {
	WaitInterval   Duration `toml:"wait_interval" validate:"gt=0"`
	QuiescencePoll Duration `toml:"quiescence_poll" validate:"gt=0"`
}

// Duration is a time.Duration that decodes from strings such as "50ms".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
