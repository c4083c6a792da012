// Package formdata holds the application draft as nested JSON-shaped maps
// addressed by dotted paths such as "personalInfo.surname".
package formdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrIndexOutOfRange is returned when a list segment neither names an existing
// element nor the next one to append.
var ErrIndexOutOfRange = errors.New("list index out of range")

// Data is the in-progress application. Top-level keys are the step sections.
type Data map[string]interface{}

// Section names, in step order.
const (
	PersonalInfo       = "personalInfo"
	AcademicBackground = "academicBackground"
	ProgramSelection   = "programSelection"
	Accommodation      = "accommodation"
	Referee            = "referee"
)

// Get resolves a dotted path. Numeric segments index into lists.
func (d Data) Get(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(d)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Data:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the trimmed string at path, or "" when absent or not a string.
func (d Data) String(path string) string {
	v, ok := d.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// Bool returns the flag at path, false when absent.
func (d Data) Bool(path string) bool {
	v, ok := d.Get(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone deep-copies d so callers can never alias store internals.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Data:
		return cloneValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Merge shallow-merges partial into d: each top-level key in partial replaces d's.
func (d Data) Merge(partial Data) Data {
	out := d.Clone()
	for k, v := range partial {
		out[k] = cloneValue(v)
	}
	return out
}

// WithField returns the top-level partial that sets path to value on top of d.
// The section containing path is copied so the partial can be merged shallowly.
// A list segment may address an existing element or append exactly one.
func (d Data) WithField(path string, value interface{}) (Data, error) {
	segs := strings.Split(path, ".")
	section := segs[0]
	if len(segs) == 1 {
		return Data{section: cloneValue(value)}, nil
	}

	var root interface{} = map[string]interface{}{}
	if existing, ok := d[section]; ok {
		root = cloneValue(existing)
	}
	if _, ok := root.(map[string]interface{}); !ok {
		root = map[string]interface{}{}
	}
	updated, err := setPath(root, segs[1:], cloneValue(value))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Data{section: updated}, nil
}

func setPath(node interface{}, segs []string, value interface{}) (interface{}, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]
	if i, err := strconv.Atoi(seg); err == nil {
		list, _ := node.([]interface{})
		if i < 0 || i > len(list) {
			return nil, ErrIndexOutOfRange
		}
		if i == len(list) {
			list = append(list, map[string]interface{}{})
		}
		child, err := setPath(list[i], segs[1:], value)
		if err != nil {
			return nil, err
		}
		list[i] = child
		return list, nil
	}

	m, ok := node.(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
	}
	child, err := setPath(m[seg], segs[1:], value)
	if err != nil {
		return nil, err
	}
	m[seg] = child
	return m, nil
}

// Sections lists the top-level keys touched by partial.
func Sections(partial Data) []string {
	out := make([]string, 0, len(partial))
	for k := range partial {
		out = append(out, k)
	}
	return out
}

// Normalize round-trips v through JSON so typed structs become plain maps.
func Normalize(v interface{}) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := Data{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
