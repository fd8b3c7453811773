package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ErrEmptyCatalog is returned when a catalog would contain no tracks
var ErrEmptyCatalog = errors.New("catalog has no tracks")

// Track describes one playable item of the catalog
type Track struct {
	Name          string `yaml:"name"`
	Artist        string `yaml:"artist"`
	Album         string `yaml:"album"`
	DurationLabel string `yaml:"duration"` // Shown until the media reports a real duration
	MediaURL      string `yaml:"media_url"`
	CoverURL      string `yaml:"cover_url"`
	Lyrics        string `yaml:"lyrics"`
}

// LyricLines returns the lyrics split into lines with blank lines dropped
func (t Track) LyricLines() []string {
	return lo.Filter(strings.Split(t.Lyrics, "\n"), func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
}

// Catalog is the static, ordered list of tracks. It is read-only once built.
type Catalog struct {
	tracks []Track
}

type catalogFile struct {
	Tracks []Track `yaml:"tracks"`
}

// NewCatalog builds a catalog from a copy of tracks
func NewCatalog(tracks []Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyCatalog
	}
	return &Catalog{tracks: append([]Track(nil), tracks...)}, nil
}

// Len returns the number of tracks, always at least one
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Get returns the track at index modulo Len, so any integer is valid
func (c *Catalog) Get(index int) Track {
	return c.tracks[c.normalize(index)]
}

// Tracks returns a copy of all tracks in order
func (c *Catalog) Tracks() []Track {
	return append([]Track(nil), c.tracks...)
}

func (c *Catalog) normalize(index int) int {
	n := len(c.tracks)
	index %= n
	if index < 0 {
		index += n
	}
	return index
}

// loadCatalog reads the catalog at path, or the embedded one when path is empty.
// Relative media URLs are resolved against baseDir, falling back to the catalog file's directory.
func loadCatalog(path, baseDir string) (*Catalog, error) {
	if path == "" {
		return parseCatalog(defaultCatalogYAML, baseDir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}
	return parseCatalog(data, baseDir)
}

func parseCatalog(data []byte, baseDir string) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	tracks := lo.Map(file.Tracks, func(t Track, _ int) Track {
		t.MediaURL = resolveMediaURL(t.MediaURL, baseDir)
		return t
	})
	return NewCatalog(tracks)
}

// resolveMediaURL leaves URLs with a scheme and absolute paths untouched
func resolveMediaURL(raw, baseDir string) string {
	if raw == "" || baseDir == "" || strings.Contains(raw, "://") || filepath.IsAbs(raw) {
		return raw
	}
	return filepath.Join(baseDir, raw)
}
