package pathacl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source provides ACL configuration data
type Source interface {
	Load() (*Config, error)
}

// FileSource loads configuration from a YAML or JSON file, chosen by
// extension (.json is JSON, anything else is parsed as YAML).
type FileSource struct {
	filePath string
}

// NewFileSource creates a new file-based configuration source
func NewFileSource(filePath string) *FileSource {
	return &FileSource{
		filePath: filePath,
	}
}

// Load implements Source
func (s *FileSource) Load() (*Config, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading ACL config: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(s.filePath), ".json") {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing ACL config %s: %w", s.filePath, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing ACL config %s: %w", s.filePath, err)
		}
	}

	return &config, nil
}

// MemorySource serves a fixed configuration, mainly for tests and
// embedding. The engine takes ownership of the value on load.
type MemorySource struct {
	config *Config
}

// NewMemorySource creates a new in-memory configuration source
func NewMemorySource(config *Config) *MemorySource {
	return &MemorySource{config: config}
}

// Load implements Source
func (s *MemorySource) Load() (*Config, error) {
	if s.config == nil {
		return nil, fmt.Errorf("no configuration set")
	}
	return s.config, nil
}

// SetConfig replaces the configuration returned by subsequent loads
func (s *MemorySource) SetConfig(config *Config) {
	s.config = config
}
