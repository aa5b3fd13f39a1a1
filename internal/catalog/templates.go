package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/claude/liftlog/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Templates is an immutable set of predefined workouts.
type Templates struct {
	list []models.WorkoutTemplate
}

// DefaultTemplates returns the built-in workout templates.
func DefaultTemplates() (*Templates, error) {
	return LoadTemplates(bytes.NewReader(defaultTemplates))
}

// LoadTemplates parses a YAML template file and validates every template.
func LoadTemplates(r io.Reader) (*Templates, error) {
	var file struct {
		Templates []models.WorkoutTemplate `yaml:"templates"`
	}
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing workout templates: %w", err)
	}

	seen := make(map[string]bool, len(file.Templates))
	for i, t := range file.Templates {
		if t.ID == "" || t.Name == "" {
			return nil, fmt.Errorf("template %d: id and name are required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if !t.Difficulty.Valid() {
			return nil, fmt.Errorf("template %q: unknown difficulty %q", t.ID, t.Difficulty)
		}
		if len(t.Exercises) == 0 {
			return nil, fmt.Errorf("template %q: no exercises", t.ID)
		}
		for _, ex := range t.Exercises {
			if ex.Name == "" || ex.Sets <= 0 {
				return nil, fmt.Errorf("template %q: exercise needs a name and sets > 0", t.ID)
			}
			if !knownCategories[ex.Category] {
				return nil, fmt.Errorf("template %q: exercise %q has unknown category %q", t.ID, ex.Name, ex.Category)
			}
			if (ex.Reps > 0) == (ex.DurationMin > 0) {
				return nil, fmt.Errorf("template %q: exercise %q needs exactly one of reps or duration_min", t.ID, ex.Name)
			}
		}
	}
	return &Templates{list: file.Templates}, nil
}

// List returns the templates matching focus and difficulty; an empty filter
// matches everything.
func (t *Templates) List(focus string, difficulty models.Experience) []models.WorkoutTemplate {
	out := []models.WorkoutTemplate{}
	for _, tmpl := range t.list {
		if focus != "" && tmpl.Focus != focus {
			continue
		}
		if difficulty != "" && tmpl.Difficulty != difficulty {
			continue
		}
		out = append(out, tmpl)
	}
	return out
}

// Get returns the template with the given id.
func (t *Templates) Get(id string) (models.WorkoutTemplate, bool) {
	for _, tmpl := range t.list {
		if tmpl.ID == id {
			return tmpl, true
		}
	}
	return models.WorkoutTemplate{}, false
}
