package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/imdario/mergo"

	"github.com/testground/failpoint/pkg/logging"
)

const (
	EnvFailpointHomeDir = "FAILPOINT_HOME"
	EnvFailpointPresets = "FAILPOINT_PRESETS"

	DefaultListenAddr     = "localhost:7046"
	DefaultWaitInterval   = Duration(60e9)
	DefaultQuiescencePoll = Duration(50e6)
)

var envValidator = validator.New()

func (e *EnvConfig) Load() error {
	// false is a meaningful value in .env.toml, so boolean fallbacks are set
	// before decoding; the rest are merged in afterwards.
	e.Daemon.Persist = true
	e.Daemon.Metrics = true
	e.Daemon.AutoRegister = true

	// calculate home directory; use env var, or fall back to $HOME/.failpoint
	// otherwise.
	var home string
	if v, ok := os.LookupEnv(EnvFailpointHomeDir); ok {
		home = v
	} else {
		v, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to obtain user home dir: %w", err)
		}
		home = filepath.Join(v, ".failpoint")
	}

	switch fi, err := os.Stat(home); {
	case os.IsNotExist(err):
		logging.S().Infof("creating home directory at %s", home)
		if err := os.MkdirAll(home, 0777); err != nil {
			return fmt.Errorf("failed to create home directory at %s: %w", home, err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat home directory %s: %w", home, err)
	case !fi.IsDir():
		return fmt.Errorf("home path is not a directory %s", home)
	default:
		logging.S().Infof("using home directory: %s", home)
	}
	e.dirs = Directories{home}

	// parse the .env.toml file, if it exists.
	f := filepath.Join(e.dirs.Home(), ".env.toml")
	if _, err := os.Stat(f); err == nil {
		_, err = toml.DecodeFile(f, e)
		if err != nil {
			return fmt.Errorf("found .env.toml at %s, but failed to parse: %w", f, err)
		}
		logging.S().Infof(".env.toml loaded from: %s", f)
	} else {
		logging.S().Infof("no .env.toml found at %s; running with defaults", f)
	}

	defaults := EnvConfig{
		Daemon: DaemonConfig{Listen: DefaultListenAddr, Store: e.dirs.Store()},
		Client: ClientConfig{Endpoint: DefaultListenAddr},
		Sync:   SyncConfig{WaitInterval: DefaultWaitInterval, QuiescencePoll: DefaultQuiescencePoll},
	}
	if err := mergo.Merge(e, defaults); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if v, ok := os.LookupEnv(EnvFailpointPresets); ok && strings.TrimSpace(v) != "" {
		presets, err := parsePresets(v)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvFailpointPresets, err)
		}
		if e.FailPoints == nil {
			e.FailPoints = make(map[string]ConfigMap, len(presets))
		}
		// a preset from the environment replaces the whole request.
		for name, req := range presets {
			e.FailPoints[name] = req
		}
	}

	if err := envValidator.Struct(e); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// parsePresets decodes a JSON object of configuration requests keyed by fail
// point name. Numbers are kept as json.Number.
func parsePresets(v string) (map[string]ConfigMap, error) {
	dec := json.NewDecoder(strings.NewReader(v))
	dec.UseNumber()

	var presets map[string]ConfigMap
	if err := dec.Decode(&presets); err != nil {
		return nil, err
	}
	return presets, nil
}
