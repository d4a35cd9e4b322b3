package dzforms

import (
	"fmt"
	"net/mail"
	"slices"
	"strconv"
	"strings"
)

// ValidationError lists per-field problems keyed by field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// ValidateEntry checks a submission against the form fields and returns the
// values to store. Keys that match no field are dropped, as are
// presentational fields. Missing hidden fields take their default value.
func ValidateEntry(fields []Field, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	problems := make(map[string]string)

	for _, f := range fields {
		if f.Presentational() {
			continue
		}

		raw, present := values[f.Name]
		if !present && f.Type == TypeHidden && f.DefaultValue != nil {
			raw, present = *f.DefaultValue, true
		}

		vals := stringValues(raw)
		if !present || len(vals) == 0 {
			if f.Required {
				problems[f.Name] = fmt.Sprintf("%s is required", labelOf(f))
			}
			continue
		}

		if msg := checkValues(f, vals); msg != "" {
			problems[f.Name] = msg
			continue
		}

		if f.Type == TypeCheckbox {
			out[f.Name] = vals
		} else {
			out[f.Name] = vals[0]
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}
	return out, nil
}

func labelOf(f Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// stringValues flattens a decoded JSON or form value into its non-empty
// string parts
func stringValues(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch x := v.(type) {
	case nil:
	case string:
		add(x)
	case bool:
		if x {
			add("true")
		}
	case float64:
		add(strconv.FormatFloat(x, 'f', -1, 64))
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, item := range x {
			out = append(out, stringValues(item)...)
		}
	default:
		add(fmt.Sprint(x))
	}
	return out
}

func checkValues(f Field, vals []string) string {
	switch f.Type {
	case TypeSelect, TypeRadio:
		if len(vals) > 1 {
			return "only one value allowed"
		}
		if len(f.Options) > 0 && !slices.Contains(f.Options, vals[0]) {
			return fmt.Sprintf("%q is not a valid option", vals[0])
		}
	case TypeCheckbox:
		// a lone checkbox without options posts "true"
		if len(f.Options) == 0 {
			return ""
		}
		for _, v := range vals {
			if !slices.Contains(f.Options, v) {
				return fmt.Sprintf("%q is not a valid option", v)
			}
		}
	case TypeNumber:
		if _, err := strconv.ParseFloat(vals[0], 64); err != nil {
			return "must be a number"
		}
	case TypeEmail:
		addr, err := mail.ParseAddress(vals[0])
		if err != nil || addr.Address != vals[0] {
			return "must be an email address"
		}
	default:
		if len(vals) > 1 {
			return "only one value allowed"
		}
	}
	return ""
}
