// Package presets remembers approved column mappings per file layout.
package presets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Preset is one remembered mapping.
type Preset struct {
	Fingerprint string               `yaml:"fingerprint"`
	Headers     []string             `yaml:"headers"`
	Mapping     entity.ColumnMapping `yaml:"mapping"`
	UpdatedAt   time.Time            `yaml:"updated_at"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Fingerprint hashes the header layout. Case, punctuation and spacing are
// ignored so "Amount ($)" and "amount" produce the same layout.
func Fingerprint(headers []string) string {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

// Store is a YAML-backed preset registry. An empty path keeps presets in
// memory only.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	presets map[string]Preset
}

// Open loads presets from path. A missing file is an empty registry.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, presets: make(map[string]Preset)}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f presetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	for _, p := range f.Presets {
		if p.Fingerprint == "" {
			p.Fingerprint = Fingerprint(p.Headers)
		}
		s.presets[p.Fingerprint] = p
	}
	logger.Info("mapping presets loaded", "path", path, "count", len(s.presets))
	return s, nil
}

// Lookup returns the mapping last saved for headers' layout.
func (s *Store) Lookup(headers []string) (entity.ColumnMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presets[Fingerprint(headers)]
	return p.Mapping, ok
}

// Save remembers mapping for headers' layout. Incomplete mappings are not
// worth reusing and are ignored.
func (s *Store) Save(headers []string, mapping entity.ColumnMapping, now time.Time) error {
	if !mapping.Complete() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := Fingerprint(headers)
	s.presets[fp] = Preset{
		Fingerprint: fp,
		Headers:     append([]string(nil), headers...),
		Mapping:     mapping,
		UpdatedAt:   now.UTC(),
	}
	return s.persistLocked()
}

// List returns every preset, newest first.
func (s *Store) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preset, 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	f := presetFile{Presets: make([]Preset, 0, len(s.presets))}
	for _, p := range s.presets {
		f.Presets = append(f.Presets, p)
	}
	sort.Slice(f.Presets, func(i, j int) bool { return f.Presets[i].Fingerprint < f.Presets[j].Fingerprint })

	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.logger.Debug("mapping presets saved", "path", s.path, "count", len(f.Presets))
	return nil
}
