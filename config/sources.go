package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	SourceKindHTML   = "html"
	SourceKindReddit = "reddit"

	defaultMinLength = 20
	defaultMaxLength = 2000
)

//go:embed sources.yaml
var defaultSources []byte

type SourcesFile struct {
	Sources map[string]SourceConfig `yaml:"sources"`
}

// SourceConfig describes how snippets are pulled from one kind of page.
type SourceConfig struct {
	Kind      string   `yaml:"kind"`
	Selectors []string `yaml:"selectors"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
}

// LoadSources reads source definitions from path, or the embedded defaults
// when path is empty. A generic html source is always present.
func LoadSources(path string) (map[string]SourceConfig, error) {
	raw := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("[Config] failed to read sources file %s: %w", path, err)
		}
		raw = b
	}
	return ParseSources(raw)
}

func ParseSources(raw []byte) (map[string]SourceConfig, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("[Config] failed to parse sources: %w", err)
	}

	sources := make(map[string]SourceConfig, len(file.Sources)+1)
	for name, src := range file.Sources {
		if src.Kind == "" {
			src.Kind = SourceKindHTML
		}
		if src.Kind != SourceKindHTML && src.Kind != SourceKindReddit {
			return nil, fmt.Errorf("[Config] source %q has unknown kind %q", name, src.Kind)
		}
		if src.MinLength <= 0 {
			src.MinLength = defaultMinLength
		}
		if src.MaxLength <= 0 {
			src.MaxLength = defaultMaxLength
		}
		if src.MinLength > src.MaxLength {
			return nil, fmt.Errorf("[Config] source %q has min_length above max_length", name)
		}
		sources[name] = src
	}

	if _, ok := sources["generic"]; !ok {
		sources["generic"] = SourceConfig{Kind: SourceKindHTML, MinLength: defaultMinLength, MaxLength: defaultMaxLength}
	}
	return sources, nil
}

func SourceNames(sources map[string]SourceConfig) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
