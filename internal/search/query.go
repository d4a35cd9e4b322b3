package search

import "strings"

// Filters are the operator constraints of a palette query. String values are lower-cased.
type Filters struct {
	Type         string
	Status       string
	Tag          string
	HasLinks     bool
	HasBacklinks bool
	LinkTo       string
	LinkedBy     string
}

// Active reports whether any filter is set
func (f Filters) Active() bool {
	return f.Type != "" || f.Status != "" || f.Tag != "" ||
		f.HasLinks || f.HasBacklinks || f.LinkTo != "" || f.LinkedBy != ""
}

// Query is a parsed palette query
type Query struct {
	// Raw is the lower-cased, trimmed input
	Raw     string
	Text    string
	Filters Filters
}

// ParseQuery splits q into operator tokens and free text. Operators are
// recognised per whitespace-separated token, so "backlinks:" never also
// sets the links: flag. A value operator with nothing after the colon is dropped.
func ParseQuery(q string) Query {
	raw := strings.ToLower(strings.TrimSpace(q))
	out := Query{Raw: raw}

	var text []string
	for _, tok := range strings.Fields(raw) {
		name, value, ok := strings.Cut(tok, ":")
		if !ok {
			text = append(text, tok)
			continue
		}

		switch name {
		case "type":
			if value != "" {
				out.Filters.Type = value
			}
		case "status":
			if value != "" {
				out.Filters.Status = value
			}
		case "tag":
			if value = strings.TrimPrefix(value, "#"); value != "" {
				out.Filters.Tag = value
			}
		case "linkto":
			if value != "" {
				out.Filters.LinkTo = value
			}
		case "linkedby":
			if value != "" {
				out.Filters.LinkedBy = value
			}
		case "links":
			out.Filters.HasLinks = true
			if value != "" {
				text = append(text, value)
			}
		case "backlinks":
			out.Filters.HasBacklinks = true
			if value != "" {
				text = append(text, value)
			}
		default:
			text = append(text, tok)
		}
	}

	out.Text = strings.Join(text, " ")
	return out
}
