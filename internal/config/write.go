package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// WriteDefault writes a starter config file. The format follows the
// extension: .toml for TOML, .yaml or .yml for YAML. An existing file is
// left untouched and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	data, err := renderDefaults(strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func renderDefaults(ext string) ([]byte, error) {
	tree := nest(defaults())
	switch ext {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("config: encode yaml: %w", err)
		}
		return data, nil
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, fmt.Errorf("config: encode toml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("config: unsupported extension %q (want .yaml, .yml or .toml)", ext)
	}
}

// nest turns dotted keys into nested maps.
func nest(flat map[string]any) map[string]any {
	root := make(map[string]any)
	for key, val := range flat {
		parts := strings.Split(key, ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = val
	}
	return root
}
