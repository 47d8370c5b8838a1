// Package config loads and persists the merged static+dynamic
// configuration state file. The file is read at pipeline start and
// rewritten at the end of each phase that mutates dynamic state; there
// is no cross-process locking, last writer wins.
package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// DefaultPath is the per-project state file location.
const DefaultPath = "agentlaunch.yaml"

type Store struct {
	path string
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the state file and applies environment overrides to the
// static fields. Static fields are fixed for the rest of the invocation.
func (s *Store) Load() (*models.Configuration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindValidation, "config.Load",
			"cannot read configuration file "+s.path, err).
			WithContext("path", s.path).
			WithMitigation(
				"create the configuration file or point --config at the right path",
			)
	}

	var cfg models.Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errdefs.Wrap(errdefs.KindValidation, "config.Load",
			"configuration file is not valid YAML", err).
			WithContext("path", s.path)
	}

	if err := env.Parse(&cfg.Static); err != nil {
		return nil, errdefs.Wrap(errdefs.KindValidation, "config.Load",
			"invalid environment override", err)
	}
	return &cfg, nil
}

// Save persists the configuration atomically: write a temp file next to
// the target, then rename over it.
func (s *Store) Save(cfg *models.Configuration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInternal, "config.Save",
			"cannot marshal configuration", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".agentlaunch-*.yaml")
	if err != nil {
		return errdefs.Wrap(errdefs.KindInternal, "config.Save",
			"cannot write configuration file", err).
			WithContext("path", s.path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errdefs.Wrap(errdefs.KindInternal, "config.Save",
			"cannot write configuration file", err).
			WithContext("path", s.path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errdefs.Wrap(errdefs.KindInternal, "config.Save",
			"cannot write configuration file", err).
			WithContext("path", s.path)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errdefs.Wrap(errdefs.KindInternal, "config.Save",
			"cannot replace configuration file", err).
			WithContext("path", s.path)
	}
	return nil
}
