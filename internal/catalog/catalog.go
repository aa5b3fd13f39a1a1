package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/claude/liftlog/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed exercises.yaml
var defaultLibrary []byte

var knownCategories = map[models.Category]bool{
	models.CategoryPush:   true,
	models.CategoryPull:   true,
	models.CategoryLegs:   true,
	models.CategoryCore:   true,
	models.CategoryCardio: true,
}

// Library is an immutable, in-memory exercise catalog.
type Library struct {
	entries []models.ExerciseEntry
}

// Default returns the built-in library.
func Default() (*Library, error) {
	return Load(bytes.NewReader(defaultLibrary))
}

// Load parses a YAML library and validates every entry.
func Load(r io.Reader) (*Library, error) {
	var file struct {
		Exercises []models.ExerciseEntry `yaml:"exercises"`
	}
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing exercise library: %w", err)
	}

	seen := make(map[string]bool, len(file.Exercises))
	for i, e := range file.Exercises {
		if e.Name == "" {
			return nil, fmt.Errorf("exercise %d: name is required", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("exercise %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
		if !knownCategories[e.Category] {
			return nil, fmt.Errorf("exercise %q: unknown category %q", e.Name, e.Category)
		}
		if len(e.Equipment) == 0 {
			return nil, fmt.Errorf("exercise %q: equipment is required", e.Name)
		}
		if e.Sets <= 0 {
			return nil, fmt.Errorf("exercise %q: sets must be > 0", e.Name)
		}
		if (e.Reps == "") == (e.Duration == 0) {
			return nil, fmt.Errorf("exercise %q: exactly one of reps or duration is required", e.Name)
		}
	}
	return &Library{entries: file.Exercises}, nil
}

// Lookup returns the entries of a category that need at least one piece of
// the given equipment and carry none of the avoid tags, in library order.
// The result is a fresh slice the caller may reorder.
func (l *Library) Lookup(category models.Category, equipment []models.Equipment, avoid []models.Constraint) []models.ExerciseEntry {
	var out []models.ExerciseEntry
	for _, e := range l.entries {
		if e.Category != category {
			continue
		}
		if e.EligibleFor(equipment, avoid) {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry in library order.
func (l *Library) All() []models.ExerciseEntry {
	return append([]models.ExerciseEntry(nil), l.entries...)
}

// Find returns the entry with the given name.
func (l *Library) Find(name string) (models.ExerciseEntry, bool) {
	for _, e := range l.entries {
		if e.Name == name {
			return e, true
		}
	}
	return models.ExerciseEntry{}, false
}
