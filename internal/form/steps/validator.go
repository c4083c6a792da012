package steps

import (
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/schema"
)

type Result struct {
	Step   int                 `json:"step"`
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors"`
}

// Validator checks a draft against the schema slice a step owns. It never mutates the draft.
type Validator struct {
	registry *Registry
	schema   *schema.Schema
}

func NewValidator(registry *Registry, s *schema.Schema) *Validator {
	return &Validator{registry: registry, schema: s}
}

func (v *Validator) Registry() *Registry { return v.registry }

func (v *Validator) Schema() *schema.Schema { return v.schema }

// ValidateStep returns an invalid result for an out-of-range index.
func (v *Validator) ValidateStep(d formdata.Data, index int) Result {
	step, ok := v.registry.Step(index)
	if !ok {
		return Result{Step: index, Valid: false, Errors: map[string][]string{}}
	}

	errs := v.schema.Validate(d, step.Prefix)
	res := Result{Step: index, Valid: len(errs) == 0, Errors: errs.ByField()}

	outcome := "valid"
	if !res.Valid {
		outcome = "invalid"
	}
	metrics.StepValidations.WithLabelValues(step.Key, outcome).Inc()
	return res
}

// AllResult is the outcome of validating every step.
type AllResult struct {
	Valid        bool                `json:"valid"`
	Steps        []Result            `json:"steps"`
	Errors       map[string][]string `json:"errors"`
	FirstInvalid int                 `json:"firstInvalid"`
}

// ValidateAll validates each step in order. FirstInvalid is -1 when all pass.
func (v *Validator) ValidateAll(d formdata.Data) AllResult {
	out := AllResult{Valid: true, Errors: map[string][]string{}, FirstInvalid: -1}
	for i := 0; i < v.registry.Count(); i++ {
		res := v.ValidateStep(d, i)
		out.Steps = append(out.Steps, res)
		if res.Valid {
			continue
		}
		if out.Valid {
			out.FirstInvalid = i
		}
		out.Valid = false
		for path, msgs := range res.Errors {
			out.Errors[path] = append(out.Errors[path], msgs...)
		}
	}
	return out
}
