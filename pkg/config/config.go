// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configurations that check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding ${VAR} references from
// the environment before parsing. When target implements Validator the
// loaded result is validated.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return parse(filename, data, target)
}

// LoadIfPresent behaves like Load but treats a missing file as empty
// input: target keeps its pre-populated defaults and is still
// validated.
func LoadIfPresent[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return validate(target)
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return parse(filename, data, target)
}

func parse[T any](filename string, data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return validate(target)
}

func validate[T any](target *T) error {
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
