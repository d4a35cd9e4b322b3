package dzforms

import "fmt"

// FieldPatch carries the settings panel edits for one field. Nil members are
// left unchanged.
type FieldPatch struct {
	Name         *string   `json:"name,omitempty"`
	Label        *string   `json:"label,omitempty"`
	Required     *bool     `json:"required,omitempty"`
	Placeholder  *string   `json:"placeholder,omitempty"`
	Options      *[]string `json:"options,omitempty"`
	DefaultValue *string   `json:"defaultValue,omitempty"`
	HTMLContent  *string   `json:"htmlContent,omitempty"`
}

func (p FieldPatch) apply(f Field) Field {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Required != nil {
		f.Required = *p.Required
	}
	if p.Placeholder != nil {
		f.Placeholder = *p.Placeholder
	}
	if p.Options != nil {
		f.Options = append([]string(nil), (*p.Options)...)
	}
	if p.DefaultValue != nil {
		v := *p.DefaultValue
		f.DefaultValue = &v
	}
	if p.HTMLContent != nil {
		f.HTMLContent = *p.HTMLContent
	}
	return f
}

func indexOf(fields []Field, id string) int {
	for i, f := range fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// AddField appends a default field of type t and returns the new list with
// the added field. The input slice is not modified.
func AddField(fields []Field, t string) ([]Field, Field, error) {
	if !KnownType(t) {
		return nil, Field{}, fmt.Errorf("%w: unknown type %q", ErrInvalidFields, t)
	}
	f := DefaultField(t)
	// Field names derive from the clock; keep them unique within the form.
	base, n := f.Name, 2
	for hasName(fields, f.Name) {
		f.Name = fmt.Sprintf("%s_%d", base, n)
		n++
	}
	out := make([]Field, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, f), f, nil
}

func hasName(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// UpdateField merges patch into the field with the given id
func UpdateField(fields []Field, id string, patch FieldPatch) ([]Field, error) {
	i := indexOf(fields, id)
	if i < 0 {
		return nil, ErrFieldNotFound
	}
	out := append([]Field(nil), fields...)
	out[i] = patch.apply(out[i])
	if err := ValidateFields(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteField removes the field with the given id
func DeleteField(fields []Field, id string) ([]Field, error) {
	i := indexOf(fields, id)
	if i < 0 {
		return nil, ErrFieldNotFound
	}
	out := make([]Field, 0, len(fields)-1)
	out = append(out, fields[:i]...)
	return append(out, fields[i+1:]...), nil
}

// MoveField moves the field with the given id to position to, clamped to
// the bounds of the list.
func MoveField(fields []Field, id string, to int) ([]Field, error) {
	from := indexOf(fields, id)
	if from < 0 {
		return nil, ErrFieldNotFound
	}
	to = max(0, min(to, len(fields)-1))

	out := append([]Field(nil), fields...)
	f := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = f
	return out, nil
}
