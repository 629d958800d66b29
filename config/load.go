package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadFromFile reads, defaults and validates a configuration file.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Store persists the schedule state between runs.
type Store interface {
	LoadState() (State, error)
	SaveState(State) error
}

// NewFileStore returns a Store backed by a JSON file at path. A missing
// file loads as the zero state.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

type fileStore struct {
	path string
}

func (s *fileStore) LoadState() (State, error) {
	state := State{}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, err
	}

	err = json.Unmarshal(raw, &state)
	return state, err
}

func (s *fileStore) SaveState(state State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0600)
}
