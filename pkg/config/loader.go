package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrInvalid          = errors.New("invalid configuration")
)

// Load reads, validates and returns the configuration at path. The
// environment override is applied before validation.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read loads the file at path without the environment override or Validate,
// so command line flags can complete it first. A relative repeatFile is
// resolved against the directory of path.
func Read(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cfg.RepeatFile != "" && !filepath.IsAbs(cfg.RepeatFile) {
		cfg.RepeatFile = filepath.Join(filepath.Dir(path), cfg.RepeatFile)
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default and checks it against the
// schema. It does not run Validate, so a partial document can be completed
// by flags first.
func Parse(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if doc == nil {
		return nil, ErrEmptyFile
	}

	// Round trip through JSON so the schema sees JSON types.
	jsonDoc, err := toJSONValue(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if res := validateSchema(jsonDoc); !res.IsValid() {
		return nil, res
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRepeatFile); v != "" {
		c.RepeatFile = v
	}
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
