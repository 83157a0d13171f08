// Package project loads the on-disk project configuration (.envsync.yaml)
// that binds a directory tree to a remote project and its environments.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	errs "github.com/envsync/envsync/internal/errors"
)

// ConfigFileName is the project config file searched for from the working
// directory upward.
const ConfigFileName = ".envsync.yaml"

// Rule is one validation rule for a variable key.
type Rule struct {
	Key      string `yaml:"key"`
	Required bool   `yaml:"required"`
	Pattern  string `yaml:"pattern,omitempty"`
	NonEmpty bool   `yaml:"nonEmpty,omitempty"`
}

// Project is the parsed .envsync.yaml.
type Project struct {
	Name string `yaml:"name"`

	// DefaultEnvironment is used when no --env flag is given and
	// ENVSYNC_ENVIRONMENT is unset.
	DefaultEnvironment string `yaml:"defaultEnvironment,omitempty"`

	// Environments maps environment name to the env file path, relative
	// to the config file's directory.
	Environments map[string]string `yaml:"environments"`

	// Rules are checked by `envsync validate`.
	Rules []Rule `yaml:"rules,omitempty"`

	// Dir is the directory containing the config file. Not serialized.
	Dir string `yaml:"-"`
}

// Load parses a project config file at an explicit path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project config: %w", err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving project config path: %w", err)
	}
	p.Dir = filepath.Dir(abs)

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &p, nil
}

// Discover walks from dir toward the filesystem root looking for
// .envsync.yaml and loads the first one found.
func Discover(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(abs, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, fmt.Errorf("%w: no %s found from %s upward", errs.ErrProjectNotFound, ConfigFileName, dir)
		}
		abs = parent
	}
}

func (p *Project) validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}

	if len(p.Environments) == 0 {
		return fmt.Errorf("at least one environment is required")
	}

	if p.DefaultEnvironment != "" {
		if _, ok := p.Environments[p.DefaultEnvironment]; !ok {
			return fmt.Errorf("defaultEnvironment %q is not a declared environment", p.DefaultEnvironment)
		}
	}

	for env, path := range p.Environments {
		if path == "" {
			return fmt.Errorf("environment %q has an empty file path", env)
		}
	}

	return nil
}

// EnvFilePath returns the absolute env file path for an environment.
func (p *Project) EnvFilePath(environment string) (string, error) {
	rel, ok := p.Environments[environment]
	if !ok {
		return "", fmt.Errorf("environment %q is not declared in %s", environment, ConfigFileName)
	}

	if filepath.IsAbs(rel) {
		return rel, nil
	}
	return filepath.Join(p.Dir, rel), nil
}
