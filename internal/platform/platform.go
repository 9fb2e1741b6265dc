// Package platform defines the closed set of device platforms patchpull can
// pull from. Definitions ship as an embedded YAML document, so supporting a
// new device is a one-entry change to platforms.yaml.
package platform

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed platforms.yaml
var definitionsYAML []byte

// Platform identifies one device on Patchstorage.
type Platform struct {
	Slug      string   `yaml:"slug"`
	Name      string   `yaml:"name"`
	ID        int      `yaml:"id"` // Patchstorage numeric platform identifier
	Aliases   []string `yaml:"aliases"`
	Extension string   `yaml:"extension"` // fallback file extension, e.g. ".syx"
}

type registryFile struct {
	Platforms []Platform `yaml:"platforms"`
}

// NotFoundError is returned by Resolve for a name that matches no platform.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown platform %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Load parses the embedded definitions and validates that slugs and IDs are
// unique. All and Resolve use the same parse; Load exists so the registry
// can be validated directly.
func Load() ([]Platform, error) {
	var file registryFile
	if err := yaml.Unmarshal(definitionsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse platform definitions: %w", err)
	}
	if len(file.Platforms) == 0 {
		return nil, fmt.Errorf("platform definitions are empty")
	}

	slugs := make(map[string]bool)
	ids := make(map[int]bool)
	for _, p := range file.Platforms {
		if p.Slug == "" || p.Name == "" || p.ID <= 0 {
			return nil, fmt.Errorf("invalid platform definition %+v", p)
		}
		if slugs[p.Slug] {
			return nil, fmt.Errorf("duplicate platform slug %q", p.Slug)
		}
		if ids[p.ID] {
			return nil, fmt.Errorf("duplicate platform id %d", p.ID)
		}
		slugs[p.Slug] = true
		ids[p.ID] = true
	}

	return file.Platforms, nil
}

var platforms = mustLoad()

func mustLoad() []Platform {
	ps, err := Load()
	if err != nil {
		// The definitions are compiled into the binary; a parse failure is a
		// build defect, not a runtime condition.
		panic(err)
	}
	return ps
}

// All returns every supported platform.
func All() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// Names returns the supported platform slugs, sorted.
func Names() []string {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.Slug)
	}
	sort.Strings(names)
	return names
}

// Resolve finds a platform by slug or alias, case-insensitively.
func Resolve(name string) (Platform, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, p := range platforms {
		if strings.ToLower(p.Slug) == needle {
			return p, nil
		}
		for _, alias := range p.Aliases {
			if strings.ToLower(alias) == needle {
				return p, nil
			}
		}
	}
	return Platform{}, &NotFoundError{Name: name, Available: Names()}
}
