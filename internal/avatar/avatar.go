// Package avatar generates and validates the SVG data URIs used as user avatars.
package avatar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DataURIPrefix is the only accepted avatar encoding
const DataURIPrefix = "data:image/svg+xml;base64,"

// Fill is the background colour of generated avatars
const Fill = "#4a1e79"

var (
	ErrEmpty        = errors.New("avatar is required")
	ErrNotSVG       = errors.New("avatar must be an SVG data URI")
	ErrBadEncoding  = errors.New("avatar is not valid base64")
	ErrMissingSVG   = errors.New("avatar does not contain an svg element")
	ErrAvatarTooBig = errors.New("avatar exceeds maximum size")
)

// MaxDecodedSize bounds stored avatars
const MaxDecodedSize = 256 << 10

// Initial returns the upper-cased first letter or digit of name, or "?"
func Initial(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return strings.ToUpper(string(r))
		}
	}
	return "?"
}

// Generate returns a circle avatar showing the initial of displayName
func Generate(displayName string) string {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">
  <circle cx="50" cy="50" r="50" fill="%s"/>
  <text x="50" y="50" text-anchor="middle" dominant-baseline="central" font-family="Arial, sans-serif" font-size="48" font-weight="bold" fill="white">%s</text>
</svg>`, Fill, Initial(displayName))

	return DataURIPrefix + base64.StdEncoding.EncodeToString([]byte(svg))
}

// Validate checks that uri is a base64 SVG data URI
func Validate(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ErrEmpty
	}
	if !strings.HasPrefix(uri, DataURIPrefix) {
		return ErrNotSVG
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
	if err != nil {
		return ErrBadEncoding
	}
	if len(decoded) > MaxDecodedSize {
		return ErrAvatarTooBig
	}
	if !strings.Contains(strings.ToLower(string(decoded)), "<svg") {
		return ErrMissingSVG
	}
	return nil
}
