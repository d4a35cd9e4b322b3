package avatar

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitial(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"letter", "alice", "A"},
		{"leading symbols", "  _bob", "B"},
		{"digit", "42nd", "4"},
		{"unicode", "émile", "É"},
		{"empty", "", "?"},
		{"no letters", "!!!", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Initial(tt.in))
		})
	}
}

func TestGenerate(t *testing.T) {
	uri := Generate("zoe")
	require.True(t, strings.HasPrefix(uri, DataURIPrefix))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `fill="#4a1e79"`)
	assert.Contains(t, string(decoded), ">Z</text>")

	assert.NoError(t, Validate(uri))
}

func TestValidate(t *testing.T) {
	enc := func(s string) string { return DataURIPrefix + base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "  ", ErrEmpty},
		{"png", "data:image/png;base64,AAAA", ErrNotSVG},
		{"http url", "https://example.com/a.svg", ErrNotSVG},
		{"bad base64", DataURIPrefix + "%%%", ErrBadEncoding},
		{"not svg", enc("<html></html>"), ErrMissingSVG},
		{"too big", enc("<svg>" + strings.Repeat("a", MaxDecodedSize) + "</svg>"), ErrAvatarTooBig},
		{"ok", enc(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.in), tt.want)
		})
	}
}
