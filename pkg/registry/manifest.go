// pkg/registry/manifest.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"admissions-portal/internal/form/schema"
	"admissions-portal/internal/form/steps"
)

// FormManifest describes the wizard for front-end builds: the steps in order
// and the field rules each step owns.
type FormManifest struct {
	Version       string      `json:"version"`
	LastUpdated   string      `json:"lastUpdated"`
	ReferenceDate string      `json:"referenceDate"`
	Steps         []StepEntry `json:"steps"`
}

type StepEntry struct {
	Index      int                `json:"index"`
	Key        string             `json:"key"`
	Title      string             `json:"title"`
	Component  string             `json:"component"`
	Prefix     string             `json:"prefix"`
	Fields     []schema.FieldRule `json:"fields"`
	CrossField []string           `json:"crossField,omitempty"`
}

// Build derives a manifest from the live registry and schema.
func Build(version string, reg *steps.Registry, s *schema.Schema) *FormManifest {
	m := &FormManifest{
		Version:       version,
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		ReferenceDate: s.ReferenceDate.Format("2006-01-02"),
	}
	for _, step := range reg.Steps() {
		entry := StepEntry{
			Index:     step.Index,
			Key:       step.Key,
			Title:     step.Title,
			Component: step.Component,
			Prefix:    step.Prefix,
			Fields:    []schema.FieldRule{},
		}
		for _, rule := range s.Fields {
			if rule.Path == step.Prefix || strings.HasPrefix(rule.Path, step.Prefix+".") {
				entry.Fields = append(entry.Fields, rule)
			}
		}
		for _, rule := range s.CrossField {
			if rule.Prefix == step.Prefix {
				entry.CrossField = append(entry.CrossField, rule.Name)
			}
		}
		m.Steps = append(m.Steps, entry)
	}
	return m
}

func Load(path string) (*FormManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m FormManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest, creating the directory if it doesn't exist.
func Save(m *FormManifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// Validate checks the manifest is internally consistent.
func (m *FormManifest) Validate() error {
	if len(m.Steps) == 0 {
		return fmt.Errorf("manifest contains no steps")
	}
	keys := make(map[string]bool)
	for i, step := range m.Steps {
		if step.Index != i {
			return fmt.Errorf("step %q has index %d, expected %d", step.Key, step.Index, i)
		}
		if step.Key == "" {
			return fmt.Errorf("step %d missing required field: key", i)
		}
		if keys[step.Key] {
			return fmt.Errorf("duplicate step key: %s", step.Key)
		}
		keys[step.Key] = true
		if step.Title == "" || step.Component == "" || step.Prefix == "" {
			return fmt.Errorf("step %s missing title, component or prefix", step.Key)
		}
		for _, f := range step.Fields {
			if !strings.HasPrefix(f.Path, step.Prefix+".") {
				return fmt.Errorf("field %s is listed under step %s but outside %s", f.Path, step.Key, step.Prefix)
			}
		}
	}
	return nil
}

// Drift lists the differences between a stored manifest and current, ignoring
// version and timestamp.
func Drift(stored, current *FormManifest) []string {
	var out []string
	if stored.ReferenceDate != current.ReferenceDate {
		out = append(out, fmt.Sprintf("referenceDate: %s != %s", stored.ReferenceDate, current.ReferenceDate))
	}
	if len(stored.Steps) != len(current.Steps) {
		out = append(out, fmt.Sprintf("step count: %d != %d", len(stored.Steps), len(current.Steps)))
		return out
	}
	for i := range current.Steps {
		a, b := stored.Steps[i], current.Steps[i]
		if a.Key != b.Key || a.Title != b.Title || a.Component != b.Component || a.Prefix != b.Prefix {
			out = append(out, fmt.Sprintf("step %d: %s/%s != %s/%s", i, a.Key, a.Component, b.Key, b.Component))
		}
		aj, _ := json.Marshal(a.Fields)
		bj, _ := json.Marshal(b.Fields)
		if string(aj) != string(bj) {
			out = append(out, fmt.Sprintf("step %d (%s): field rules changed", i, b.Key))
		}
	}
	return out
}
