package dzforms

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFields() []Field {
	return []Field{
		{ID: "1", Name: "name", Label: "Name", Type: TypeText, Required: true},
		{ID: "2", Name: "email", Label: "Email", Type: TypeEmail},
		{ID: "3", Name: "plan", Label: "Plan", Type: TypeSelect, Options: []string{"free", "pro"}},
		{ID: "4", Name: "size", Label: "Size", Type: TypeRadio, Options: []string{"S", "M"}, Required: true},
		{ID: "5", Name: "toppings", Label: "Toppings", Type: TypeCheckbox, Options: []string{"ham", "olive"}},
		{ID: "6", Name: "qty", Label: "Quantity", Type: TypeNumber},
		{ID: "7", Name: "source", Label: "Source", Type: TypeHidden, DefaultValue: strptr("embed")},
		{ID: "8", Name: "intro", Label: "Intro", Type: TypeHTML, HTMLContent: "<p>hi</p>"},
		{ID: "9", Name: "part", Label: "Part", Type: TypeSection},
	}
}

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]any
		want     map[string]any
		problems []string
	}{
		{
			name:   "valid with defaults",
			values: map[string]any{"name": " Ada ", "size": "M", "extra": "dropped", "intro": "ignored"},
			want:   map[string]any{"name": "Ada", "size": "M", "source": "embed"},
		},
		{
			name: "all fields",
			values: map[string]any{
				"name": "Ada", "email": "ada@example.com", "plan": "pro", "size": "S",
				"toppings": []any{"ham", "olive"}, "qty": float64(3), "source": "ad",
			},
			want: map[string]any{
				"name": "Ada", "email": "ada@example.com", "plan": "pro", "size": "S",
				"toppings": []string{"ham", "olive"}, "qty": "3", "source": "ad",
			},
		},
		{
			name:     "required missing",
			values:   map[string]any{"name": "   "},
			problems: []string{"name", "size"},
		},
		{
			name:     "bad options",
			values:   map[string]any{"name": "Ada", "size": "XL", "plan": "gold", "toppings": []any{"ham", "pineapple"}},
			problems: []string{"plan", "size", "toppings"},
		},
		{
			name:     "bad email and number",
			values:   map[string]any{"name": "Ada", "size": "S", "email": "nope", "qty": "many"},
			problems: []string{"email", "qty"},
		},
		{
			name:     "single-choice given many",
			values:   map[string]any{"name": []any{"a", "b"}, "size": []any{"S", "M"}},
			problems: []string{"name", "size"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateEntry(entryFields(), tt.values)
			if len(tt.problems) > 0 {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				keys := make([]string, 0, len(verr.Fields))
				for k := range verr.Fields {
					keys = append(keys, k)
				}
				assert.ElementsMatch(t, tt.problems, keys)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := ValidateEntry(entryFields(), map[string]any{})
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "invalid submission: "))
	assert.Less(t, strings.Index(msg, "name:"), strings.Index(msg, "size:"), "problems are listed in name order")
	assert.Contains(t, msg, "Name is required")
}

func TestLoneCheckbox(t *testing.T) {
	fields := []Field{{ID: "1", Name: "agree", Label: "I agree", Type: TypeCheckbox, Required: true}}

	got, err := ValidateEntry(fields, map[string]any{"agree": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, got["agree"])

	_, err = ValidateEntry(fields, map[string]any{"agree": false})
	assert.Error(t, err)
}
