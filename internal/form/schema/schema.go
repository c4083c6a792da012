// Package schema declares the per-field and cross-field rules an application
// draft must satisfy. Rules are pure: they read a draft and return errors.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"admissions-portal/internal/common/validation"
	"admissions-portal/internal/form/formdata"
)

type Kind string

const (
	KindText  Kind = "text"
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindDate  Kind = "date"
	KindYear  Kind = "year"
	KindEnum  Kind = "enum"
	KindBool  Kind = "bool"
	KindList  Kind = "list"
)

// FieldRule validates one dotted path. Item rules of a list are relative to each element.
type FieldRule struct {
	Path     string      `json:"path"`
	Label    string      `json:"label"`
	Kind     Kind        `json:"kind"`
	Optional bool        `json:"optional,omitempty"`
	Enum     []string    `json:"enum,omitempty"`
	MinLen   int         `json:"minLength,omitempty"`
	MaxLen   int         `json:"maxLength,omitempty"`
	MinItems int         `json:"minItems,omitempty"`
	MaxItems int         `json:"maxItems,omitempty"`
	MinAge   int         `json:"minAge,omitempty"`
	Item     []FieldRule `json:"items,omitempty"`
}

// CrossFieldRule inspects the whole draft. Prefix scopes it to a step.
type CrossFieldRule struct {
	Name   string
	Prefix string
	Check  func(d formdata.Data, s *Schema) FieldErrors
}

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// FieldErrors keeps rule order so messages render in form order.
type FieldErrors []FieldError

// ByField groups messages under their dotted path.
func (fe FieldErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(fe))
	for _, e := range fe {
		out[e.Path] = append(out[e.Path], e.Message)
	}
	return out
}

func (fe FieldErrors) Messages() []string {
	out := make([]string, len(fe))
	for i, e := range fe {
		out[i] = e.Message
	}
	return out
}

func (fe FieldErrors) For(path string) []string {
	var out []string
	for _, e := range fe {
		if e.Path == path {
			out = append(out, e.Message)
		}
	}
	return out
}

// Paths returns the distinct failing paths, sorted.
func (fe FieldErrors) Paths() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range fe {
		if !seen[e.Path] {
			seen[e.Path] = true
			out = append(out, e.Path)
		}
	}
	sort.Strings(out)
	return out
}

type Schema struct {
	Fields        []FieldRule
	CrossField    []CrossFieldRule
	ReferenceDate time.Time
}

// Validate checks every rule whose path lies under prefix. An empty prefix validates everything.
func (s *Schema) Validate(d formdata.Data, prefix string) FieldErrors {
	var errs FieldErrors
	for _, rule := range s.Fields {
		if !underPrefix(rule.Path, prefix) {
			continue
		}
		errs = append(errs, s.checkField(d, rule.Path, rule)...)
	}
	for _, rule := range s.CrossField {
		if prefix != "" && rule.Prefix != prefix {
			continue
		}
		errs = append(errs, rule.Check(d, s)...)
	}
	return errs
}

// Rule finds the declared rule for path.
func (s *Schema) Rule(path string) (FieldRule, bool) {
	for _, r := range s.Fields {
		if r.Path == path {
			return r, true
		}
	}
	return FieldRule{}, false
}

// CheckPath rejects list indexes that no declared list rule could hold.
func (s *Schema) CheckPath(path string) error {
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		idx, err := strconv.Atoi(seg)
		if err != nil {
			continue
		}
		parent := strings.Join(segs[:i], ".")
		rule, ok := s.Rule(parent)
		if !ok || rule.Kind != KindList {
			return fmt.Errorf("%s is not a list", parent)
		}
		if idx < 0 {
			return fmt.Errorf("%s index must not be negative", rule.Label)
		}
		if rule.MaxItems > 0 && idx >= rule.MaxItems {
			return fmt.Errorf("%s cannot have more than %d entries", rule.Label, rule.MaxItems)
		}
	}
	return nil
}

func underPrefix(path, prefix string) bool {
	return prefix == "" || path == prefix || strings.HasPrefix(path, prefix+".")
}

func isBlank(v interface{}, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// CheckField applies rule to the value at path, as if the rule were declared there.
func (s *Schema) CheckField(d formdata.Data, path string, rule FieldRule) FieldErrors {
	return s.checkField(d, path, rule)
}

func (s *Schema) checkField(d formdata.Data, path string, rule FieldRule) FieldErrors {
	v, present := d.Get(path)

	if rule.Kind == KindBool {
		if present && v != nil {
			if _, ok := v.(bool); !ok {
				return FieldErrors{{path, fmt.Sprintf("%s must be yes or no", rule.Label)}}
			}
			return nil
		}
		if rule.Optional {
			return nil
		}
		return FieldErrors{{path, required(rule)}}
	}

	if rule.Kind == KindList {
		return s.checkList(d, path, rule, v, present)
	}

	if isBlank(v, present) {
		if rule.Optional {
			return nil
		}
		return FieldErrors{{path, required(rule)}}
	}

	str, ok := asString(v)
	if !ok {
		return FieldErrors{{path, fmt.Sprintf("%s must be text", rule.Label)}}
	}
	str = strings.TrimSpace(str)

	var errs FieldErrors
	add := func(msg string) { errs = append(errs, FieldError{path, msg}) }

	switch rule.Kind {
	case KindEmail:
		if !validation.ValidateEmail(str) {
			add("Please enter a valid email address")
		}
	case KindPhone:
		if !validation.ValidatePhone(str) {
			add(fmt.Sprintf("%s must be in international format, e.g. +2348012345678", rule.Label))
		}
	case KindEnum:
		if !contains(rule.Enum, str) {
			add(fmt.Sprintf("%s must be one of: %s", rule.Label, strings.Join(rule.Enum, ", ")))
		}
	case KindDate:
		t, ok := validation.ParseDate(str)
		if !ok {
			add(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", rule.Label))
			break
		}
		if rule.MinAge > 0 && validation.AgeOn(t, s.ReferenceDate) < rule.MinAge {
			add(fmt.Sprintf("Applicant must be at least %d years old", rule.MinAge))
		}
	case KindYear:
		if !validation.ValidateYear(str) {
			add(fmt.Sprintf("%s must be a four-digit year", rule.Label))
			break
		}
		if year, _ := strconv.Atoi(str); !s.ReferenceDate.IsZero() && year > s.ReferenceDate.Year() {
			add(fmt.Sprintf("%s cannot be in the future", rule.Label))
		}
	}

	n := utf8.RuneCountInString(str)
	if rule.MinLen > 0 && n < rule.MinLen {
		add(fmt.Sprintf("%s must be at least %d characters", rule.Label, rule.MinLen))
	}
	if rule.MaxLen > 0 && n > rule.MaxLen {
		add(fmt.Sprintf("%s must be at most %d characters", rule.Label, rule.MaxLen))
	}
	return errs
}

func (s *Schema) checkList(d formdata.Data, path string, rule FieldRule, v interface{}, present bool) FieldErrors {
	if !present || v == nil {
		if rule.Optional || rule.MinItems == 0 {
			return nil
		}
		return FieldErrors{{path, required(rule)}}
	}
	items, ok := v.([]interface{})
	if !ok {
		return FieldErrors{{path, fmt.Sprintf("%s must be a list", rule.Label)}}
	}

	var errs FieldErrors
	if rule.MinItems > 0 && len(items) < rule.MinItems {
		errs = append(errs, FieldError{path, fmt.Sprintf("Add at least %d %s", rule.MinItems, strings.ToLower(rule.Label))})
	}
	if rule.MaxItems > 0 && len(items) > rule.MaxItems {
		errs = append(errs, FieldError{path, fmt.Sprintf("%s cannot have more than %d entries", rule.Label, rule.MaxItems)})
	}
	for i := range items {
		for _, item := range rule.Item {
			errs = append(errs, s.checkField(d, fmt.Sprintf("%s.%d.%s", path, i, item.Path), item)...)
		}
	}
	return errs
}

func required(rule FieldRule) string {
	return rule.Label + " is required"
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
