package mappingfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/smartchr/internal/model"
)

// Format is a mapping document encoding.
type Format int

const (
	// FormatJSON is the default format.
	FormatJSON Format = iota
	FormatTOML
	FormatYAML
)

// FormatForPath picks the format from the file extension; unknown extensions use JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads the mapping file at path. A missing file is reported with an
// error wrapping os.ErrNotExist.
func Load(path string) ([]model.Mapping, error) {
	if path == "" {
		return nil, fmt.Errorf("mapping file path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("mapping file not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return Decode(data, FormatForPath(path))
}

// Decode parses a mapping document. JSON documents are checked against the
// embedded schema first.
func Decode(data []byte, format Format) ([]model.Mapping, error) {
	var doc Document
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		if err := ValidateJSON(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}
	return doc.ToMappings()
}

// Encode renders mappings in the given format.
func Encode(mappings []model.Mapping, format Format) ([]byte, error) {
	doc := NewDocument(mappings)
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Save writes mappings to path, creating parent directories. The file is
// replaced atomically.
func Save(path string, mappings []model.Mapping) error {
	data, err := Encode(mappings, FormatForPath(path))
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "mappings-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp mapping file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close mapping file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	return nil
}

// CreateDefault writes an empty mapping document to path.
func CreateDefault(path string) error {
	return Save(path, nil)
}

// Migrate writes mappings from the settings store to path unless a mapping
// file already exists there. It reports whether a file was written.
func Migrate(path string, mappings []model.Mapping) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat mapping file: %w", err)
	}
	if len(mappings) == 0 {
		return true, CreateDefault(path)
	}
	return true, Save(path, mappings)
}
