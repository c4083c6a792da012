// Package steps declares the ordered wizard steps and validates the fields each one owns.
package steps

import (
	"strings"

	"admissions-portal/internal/form/formdata"
)

// Step binds an index to its title, the field prefix it owns and the UI unit that renders it.
type Step struct {
	Index     int    `json:"index"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Prefix    string `json:"prefix"`
	Component string `json:"component"`
}

type Registry struct {
	steps []Step
}

// DefaultRegistry is the application wizard in display order.
func DefaultRegistry() *Registry {
	return NewRegistry([]Step{
		{Key: "personal-info", Title: "Personal Information", Prefix: formdata.PersonalInfo, Component: "PersonalInfoStep"},
		{Key: "academic-background", Title: "Academic Background", Prefix: formdata.AcademicBackground, Component: "AcademicBackgroundStep"},
		{Key: "program-selection", Title: "Program Selection", Prefix: formdata.ProgramSelection, Component: "ProgramSelectionStep"},
		{Key: "accommodation", Title: "Accommodation & Sponsorship", Prefix: formdata.Accommodation, Component: "AccommodationStep"},
		{Key: "referee", Title: "Referee", Prefix: formdata.Referee, Component: "RefereeStep"},
	})
}

// NewRegistry assigns indexes in the given order.
func NewRegistry(steps []Step) *Registry {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Index = i
		out[i] = s
	}
	return &Registry{steps: out}
}

func (r *Registry) Count() int { return len(r.steps) }

func (r *Registry) Last() int { return len(r.steps) - 1 }

func (r *Registry) InRange(index int) bool {
	return index >= 0 && index < len(r.steps)
}

func (r *Registry) Step(index int) (Step, bool) {
	if !r.InRange(index) {
		return Step{}, false
	}
	return r.steps[index], true
}

func (r *Registry) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// StepForPath returns the index of the step owning a dotted field path.
func (r *Registry) StepForPath(path string) (int, bool) {
	for _, s := range r.steps {
		if path == s.Prefix || strings.HasPrefix(path, s.Prefix+".") {
			return s.Index, true
		}
	}
	return 0, false
}

// StepsForSections maps top-level section names to the steps that own them, in step order.
func (r *Registry) StepsForSections(sections []string) []int {
	touched := make(map[int]bool, len(sections))
	for _, sec := range sections {
		if idx, ok := r.StepForPath(sec); ok {
			touched[idx] = true
		}
	}
	var out []int
	for _, s := range r.steps {
		if touched[s.Index] {
			out = append(out, s.Index)
		}
	}
	return out
}
