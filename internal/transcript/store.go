// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/jeranaias/pursuer/internal/util"
)

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// Store persists the flat transcript in a single text file.
// Methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: util.ExpandHome(path)}
}

// Path returns the transcript file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored transcript. A missing file is an empty transcript.
// Files that are not valid UTF-8 are decoded as ISO-8859-1; latin1 reports
// whether that fallback was used.
func (s *Store) Load() (text string, latin1 bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read transcript: %w", err)
	}
	return decode(data)
}

// decode reads data as UTF-8, falling back to ISO-8859-1.
func decode(data []byte) (string, bool, error) {
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return string(out), true, nil
}

// Save replaces the transcript with text.
func (s *Store) Save(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.WriteFileAtomic(s.path, []byte(text), 0600); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Append adds text to the end of the stored transcript.
func (s *Store) Append(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing string
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if existing, _, err = decode(data); err != nil {
			return err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	if err := util.WriteFileAtomic(s.path, []byte(existing+text), 0600); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Clear empties the stored transcript.
func (s *Store) Clear() error {
	return s.Save("")
}
