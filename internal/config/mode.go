package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModeID is the mode every cyclic or unresolved extends chain falls
// back to.
const DefaultModeID = "code"

// Mode is a named bundle of observation types, concept vocabulary, entity
// types, and relationship types.
type Mode struct {
	ID               string   `json:"id" yaml:"id"`
	Extends          string   `json:"extends,omitempty" yaml:"extends,omitempty"`
	ObservationTypes []string `json:"observationTypes,omitempty" yaml:"observationTypes,omitempty"`
	Concepts         []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	EntityTypes      []string `json:"entityTypes,omitempty" yaml:"entityTypes,omitempty"`
	RelationshipTypes []string `json:"relationshipTypes,omitempty" yaml:"relationshipTypes,omitempty"`
}

func defaultMode() *Mode {
	return &Mode{
		ID:               DefaultModeID,
		ObservationTypes: []string{"decision", "bugfix", "feature", "refactor", "discovery", "change"},
		Concepts:         []string{},
		EntityTypes:      []string{"file", "function", "module", "package", "service"},
		RelationshipTypes: []string{"depends-on", "calls", "implements", "modifies", "tests"},
	}
}

// ModeLoader loads mode bundles from a directory and resolves `extends`
// chains, guarding against cycles with a visited set (mirrors the lineage
// cycle guard in internal/graph).
type ModeLoader struct {
	dir   string
	cache map[string]*Mode
}

func NewModeLoader(modesDir string) *ModeLoader {
	return &ModeLoader{dir: modesDir, cache: make(map[string]*Mode)}
}

// Load reads and resolves mode id, merging fields up its extends chain
// (child fields win; unset slices inherit from the parent). A cyclic
// extends chain, or any load failure, resolves to the compiled-in default
// mode without error — per scenario 5.
func (l *ModeLoader) Load(id string) *Mode {
	visited := make(map[string]bool)
	resolved, ok := l.resolve(id, visited)
	if !ok {
		return defaultMode()
	}
	return resolved
}

func (l *ModeLoader) resolve(id string, visited map[string]bool) (*Mode, bool) {
	if id == "" {
		return defaultMode(), true
	}
	if visited[id] {
		return nil, false
	}
	visited[id] = true

	m, err := l.readFile(id)
	if err != nil {
		if id == DefaultModeID {
			return defaultMode(), true
		}
		return nil, false
	}

	if m.Extends == "" || m.Extends == id {
		return m, true
	}

	parent, ok := l.resolve(m.Extends, visited)
	if !ok {
		return nil, false
	}
	return mergeMode(parent, m), true
}

func mergeMode(parent, child *Mode) *Mode {
	merged := *child
	merged.ID = child.ID
	if len(child.ObservationTypes) == 0 {
		merged.ObservationTypes = parent.ObservationTypes
	}
	if len(child.Concepts) == 0 {
		merged.Concepts = parent.Concepts
	}
	if len(child.EntityTypes) == 0 {
		merged.EntityTypes = parent.EntityTypes
	}
	if len(child.RelationshipTypes) == 0 {
		merged.RelationshipTypes = parent.RelationshipTypes
	}
	return &merged
}

func (l *ModeLoader) readFile(id string) (*Mode, error) {
	if cached, ok := l.cache[id]; ok {
		return cached, nil
	}

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		m := &Mode{}
		if strings.HasSuffix(ext, "json") {
			if err := json.Unmarshal(data, m); err != nil {
				return nil, err
			}
		} else {
			if err := yaml.Unmarshal(data, m); err != nil {
				return nil, err
			}
		}
		if m.ID == "" {
			m.ID = id
		}
		l.cache[id] = m
		return m, nil
	}
	return nil, os.ErrNotExist
}
