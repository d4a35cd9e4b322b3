package dzforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field types understood by the builder and the embed renderer
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeSelect   = "select"
	TypeNumber   = "number"
	TypeCheckbox = "checkbox"
	TypeRadio    = "radio"
	TypeHidden   = "hidden"
	TypeHTML     = "html"
	TypeSection  = "section"
	TypeEmail    = "email"
)

var knownTypes = map[string]bool{
	TypeText:     true,
	TypeTextarea: true,
	TypeSelect:   true,
	TypeNumber:   true,
	TypeCheckbox: true,
	TypeRadio:    true,
	TypeHidden:   true,
	TypeHTML:     true,
	TypeSection:  true,
	TypeEmail:    true,
}

// KnownType reports whether t is a supported field type
func KnownType(t string) bool { return knownTypes[t] }

// Field is one element of a form
type Field struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Type         string   `json:"type"`
	Required     bool     `json:"required,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	Options      []string `json:"options,omitempty"`
	DefaultValue *string  `json:"defaultValue,omitempty"`
	HTMLContent  string   `json:"htmlContent,omitempty"`
}

// Presentational reports whether the field displays content instead of
// collecting a value
func (f Field) Presentational() bool {
	return f.Type == TypeHTML || f.Type == TypeSection
}

// HasOptions reports whether the field's value is chosen from Options
func (f Field) HasOptions() bool {
	return f.Type == TypeSelect || f.Type == TypeRadio || f.Type == TypeCheckbox
}

var (
	ErrFieldNotFound = errors.New("field not found")
	ErrInvalidFields = errors.New("invalid fields")
)

// clock and idSuffix are replaced in tests
var (
	clock    = time.Now
	idSuffix = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:9] }
)

func newFieldID() string {
	return fmt.Sprintf("field_%d_%s", clock().UnixMilli(), idSuffix())
}

func defaultOptions(n int) []string {
	opts := make([]string, n)
	for i := range opts {
		opts[i] = fmt.Sprintf("Option %d", i+1)
	}
	return opts
}

// DefaultField returns a new field of type t prefilled the way the builder
// presents it. Unknown types get a generic label.
func DefaultField(t string) Field {
	f := Field{
		ID:   newFieldID(),
		Name: fmt.Sprintf("field_%d", clock().UnixMilli()),
		Type: t,
	}

	switch t {
	case TypeText:
		f.Label, f.Placeholder = "Text Field", "Enter text"
	case TypeTextarea:
		f.Label, f.Placeholder = "Paragraph", "Enter text"
	case TypeSelect:
		f.Label, f.Options = "Dropdown", defaultOptions(3)
	case TypeNumber:
		f.Label, f.Placeholder = "Number", "Enter number"
	case TypeCheckbox:
		f.Label, f.Options = "Checkbox", defaultOptions(2)
	case TypeRadio:
		f.Label, f.Options = "Radio Buttons", defaultOptions(3)
	case TypeHidden:
		empty := ""
		f.Label, f.DefaultValue = "Hidden Field", &empty
	case TypeHTML:
		f.Label, f.HTMLContent = "HTML Content", "<p>Custom HTML content</p>"
	case TypeSection:
		f.Label = "Section Title"
	default:
		f.Label = "New Field"
	}
	return f
}

// ParseFields decodes and validates the JSON stored in a form. An empty
// string is an empty list.
func ParseFields(raw string) ([]Field, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []Field{}, nil
	}
	var fields []Field
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: fields must be a JSON array of fields", ErrInvalidFields)
	}
	if fields == nil {
		fields = []Field{}
	}
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ValidateFields checks types are known and ids and names are unique
func ValidateFields(fields []Field) error {
	ids := make(map[string]bool, len(fields))
	names := make(map[string]bool, len(fields))
	for i, f := range fields {
		switch {
		case !KnownType(f.Type):
			return fmt.Errorf("%w: field %d has unknown type %q", ErrInvalidFields, i, f.Type)
		case strings.TrimSpace(f.ID) == "":
			return fmt.Errorf("%w: field %d has no id", ErrInvalidFields, i)
		case strings.TrimSpace(f.Name) == "":
			return fmt.Errorf("%w: field %d has no name", ErrInvalidFields, i)
		case ids[f.ID]:
			return fmt.Errorf("%w: duplicate field id %q", ErrInvalidFields, f.ID)
		case names[f.Name]:
			return fmt.Errorf("%w: duplicate field name %q", ErrInvalidFields, f.Name)
		}
		ids[f.ID] = true
		names[f.Name] = true
	}
	return nil
}

// EncodeFields is the inverse of ParseFields
func EncodeFields(fields []Field) (string, error) {
	if fields == nil {
		fields = []Field{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
