// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store is a flat YAML-file key/value store backing the radar
// settings persistence.
package store

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/Thermoquad/radarstat/internal/config"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
	"gopkg.in/yaml.v3"
)

// ErrWrongType is returned when a stored value has a different type than requested
var ErrWrongType = errors.New("stored value has the wrong type")

var _ r60afd1.Store = (*FileStore)(nil)

// FileStore keeps values in memory and writes them to a YAML file on Commit
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]any
	dirty  bool
}

// Open loads the store at path. A missing file yields an empty store. A file
// that cannot be parsed also yields an empty store, together with the parse
// error, so the caller can fall back to defaults.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: map[string]any{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read store: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		s.values = map[string]any{}
		return s, fmt.Errorf("failed to parse store %s: %w", path, err)
	}
	if s.values == nil {
		s.values = map[string]any{}
	}
	return s, nil
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, r60afd1.ErrKeyNotFound
	}
	return v, nil
}

func (s *FileStore) set(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
	s.dirty = true
	return nil
}

// GetInt returns an integer value
func (s *FileStore) GetInt(key string) (int64, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%s: %w", key, ErrWrongType)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s: %w (%T)", key, ErrWrongType, v)
	}
}

// GetBool returns a boolean value
func (s *FileStore) GetBool(key string) (bool, error) {
	v, err := s.get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: %w (%T)", key, ErrWrongType, v)
	}
	return b, nil
}

// GetString returns a string value
func (s *FileStore) GetString(key string) (string, error) {
	v, err := s.get(key)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w (%T)", key, ErrWrongType, v)
	}
	return str, nil
}

func (s *FileStore) SetInt(key string, v int64) error     { return s.set(key, v) }
func (s *FileStore) SetBool(key string, v bool) error     { return s.set(key, v) }
func (s *FileStore) SetString(key string, v string) error { return s.set(key, v) }

// Commit writes the store to disk when anything changed since the last commit
func (s *FileStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := config.WriteFileAtomic(s.path, data, 0600); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
