// Package themes discovers, installs and serves site themes. A theme is a
// directory under the themes root holding an index.html.
package themes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// IndexFile marks a directory as a theme
const IndexFile = "index.html"

// ManifestFile is the optional theme description
const ManifestFile = "theme.yaml"

var (
	ErrInvalidName  = errors.New("invalid theme name")
	ErrNotFound     = errors.New("theme not found")
	ErrExists       = errors.New("theme already exists")
	ErrMissingIndex = errors.New("invalid theme: missing index.html file")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether name may be used as a theme directory
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Manifest is the parsed theme.yaml
type Manifest struct {
	Name        string `yaml:"name" json:"name,omitempty"`
	Version     string `yaml:"version" json:"version,omitempty"`
	Author      string `yaml:"author" json:"author,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Theme is one installed theme
type Theme struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Active   bool      `json:"active"`
	Manifest *Manifest `json:"manifest,omitempty"`
}

// Manager owns the themes directory
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager creates the themes directory if needed
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create themes directory: %w", err)
	}
	return &Manager{root: abs, logger: logger}, nil
}

// Root is the absolute themes directory
func (m *Manager) Root() string { return m.root }

// Dir returns the directory of the named theme without checking it exists
func (m *Manager) Dir(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(m.root, name), nil
}

// Exists reports whether name is an installed theme
func (m *Manager) Exists(name string) bool {
	dir, err := m.Dir(name)
	if err != nil {
		return false
	}
	return hasIndex(dir)
}

func hasIndex(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, IndexFile))
	return err == nil && !info.IsDir()
}

// List returns installed themes sorted by name, marking active
func (m *Manager) List(active string) ([]Theme, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Theme{}, nil
		}
		return nil, err
	}

	themes := []Theme{}
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		dir := filepath.Join(m.root, e.Name())
		if !hasIndex(dir) {
			continue
		}
		t := Theme{Name: e.Name(), Path: dir, Active: e.Name() == active}
		if mf, err := ReadManifest(dir); err != nil {
			m.logger.Warn("ignoring unreadable theme manifest",
				zap.String("theme", e.Name()), zap.Error(err))
		} else {
			t.Manifest = mf
		}
		themes = append(themes, t)
	}
	sort.Slice(themes, func(i, j int) bool { return themes[i].Name < themes[j].Name })
	return themes, nil
}

// Names returns the installed theme names
func (m *Manager) Names() (map[string]bool, error) {
	list, err := m.List("")
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(list))
	for _, t := range list {
		out[t.Name] = true
	}
	return out, nil
}

// ReadManifest parses dir/theme.yaml. A missing manifest is not an error.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var mf Manifest
	if err := yaml.Unmarshal(b, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return &mf, nil
}
