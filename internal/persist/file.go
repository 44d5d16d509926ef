// Package persist stores the deck document: a JSON file with a presets
// directory next to it, or PostgreSQL.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"webdeck/internal/deck"
)

// File keeps the document in a JSON file and presets as <PresetsDir>/<name>.json.
type File struct {
	Path       string
	PresetsDir string
}

func NewFile(path, presetsDir string) *File {
	return &File{Path: path, PresetsDir: presetsDir}
}

func (f *File) Load() (deck.Document, error) {
	return readDocument(f.Path)
}

func (f *File) Save(doc deck.Document) error {
	return writeDocument(f.Path, doc)
}

func readDocument(path string) (deck.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return deck.Document{}, err
	}
	var doc deck.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return deck.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// writeDocument replaces path atomically.
func writeDocument(path string, doc deck.Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *File) presetPath(name string) (string, error) {
	name = strings.TrimSuffix(name, ".json")
	if err := deck.ValidatePresetName(name); err != nil {
		return "", err
	}
	return filepath.Join(f.PresetsDir, name+".json"), nil
}

func (f *File) SavePreset(name string, doc deck.Document) error {
	path, err := f.presetPath(name)
	if err != nil {
		return err
	}
	return writeDocument(path, doc)
}

func (f *File) LoadPreset(name string) (deck.Document, error) {
	path, err := f.presetPath(name)
	if err != nil {
		return deck.Document{}, err
	}
	doc, err := readDocument(path)
	if errors.Is(err, fs.ErrNotExist) {
		return deck.Document{}, fmt.Errorf("%w: %s", deck.ErrPresetNotFound, name)
	}
	return doc, err
}

// ListPresets returns preset names sorted. A missing directory is no presets.
func (f *File) ListPresets() ([]string, error) {
	entries, err := os.ReadDir(f.PresetsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
