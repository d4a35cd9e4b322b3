package search

import (
	"bufio"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Link kinds
const (
	LinkWiki     = "wiki"
	LinkMarkdown = "markdown"
)

// Link is an outgoing reference found in a note body
type Link struct {
	Raw         string `json:"raw"`
	Target      string `json:"target"`
	Heading     string `json:"heading,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Kind        string `json:"kind"`
	Position    int    `json:"position"`
}

// Frontmatter is the YAML header of a note
type Frontmatter struct {
	ID      scalar     `yaml:"id"`
	Title   scalar     `yaml:"title"`
	Type    scalar     `yaml:"type"`
	Status  scalar     `yaml:"status"`
	Tags    stringList `yaml:"tags"`
	Aliases stringList `yaml:"aliases"`
}

// Note is the indexed form of a vault markdown file
type Note struct {
	Path        string
	Name        string
	ID          string
	Title       string
	Aliases     []string
	Frontmatter Frontmatter
	Body        string
	Links       []Link
	Backlinks   []string
	// HasContent is false when the file could not be read
	HasContent bool
}

// scalar accepts any YAML scalar, so numeric zettel ids decode as text
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*s = scalar(n.Value)
	}
	return nil
}

// stringList accepts a sequence of scalars or a single comma-separated scalar
type stringList []string

func (l *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode && strings.TrimSpace(c.Value) != "" {
				*l = append(*l, strings.TrimSpace(c.Value))
			}
		}
	case yaml.ScalarNode:
		for _, part := range strings.Split(n.Value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				*l = append(*l, p)
			}
		}
	}
	return nil
}

// SplitFrontmatter separates a leading "---" YAML block from the body.
// Malformed or missing frontmatter yields a zero Frontmatter and the full content as body.
func SplitFrontmatter(content string) (Frontmatter, string) {
	var fm Frontmatter

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return fm, content
	}

	rest := normalized[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, content
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	// the closing fence must be a line of its own
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if strings.TrimSpace(body[:nl]) != "" {
			return fm, content
		}
		body = body[nl+1:]
	} else if strings.TrimSpace(body) != "" {
		return fm, content
	} else {
		body = ""
	}

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return Frontmatter{}, content
	}
	return fm, body
}

var (
	wikiLinkPattern     = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\[\]]*)\]\(([^()\s]+)\)`)
	schemePattern       = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// ParseLinks extracts wiki links ([[target#heading|alias]]) and relative
// markdown links ([text](path)) from body in order of appearance
func ParseLinks(body string) []Link {
	var links []Link

	for _, m := range wikiLinkPattern.FindAllStringSubmatchIndex(body, -1) {
		raw := body[m[0]:m[1]]
		inner := body[m[2]:m[3]]

		var display string
		if target, alias, ok := strings.Cut(inner, "|"); ok {
			inner, display = target, strings.TrimSpace(alias)
		}
		target, heading, _ := strings.Cut(inner, "#")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		links = append(links, Link{
			Raw:         raw,
			Target:      target,
			Heading:     strings.TrimSpace(heading),
			DisplayText: display,
			Kind:        LinkWiki,
			Position:    m[0],
		})
	}

	for _, m := range markdownLinkPattern.FindAllStringSubmatchIndex(body, -1) {
		// skip images
		if m[0] > 0 && body[m[0]-1] == '!' {
			continue
		}
		dest := body[m[4]:m[5]]
		if schemePattern.MatchString(dest) || strings.HasPrefix(dest, "#") {
			continue
		}
		target, heading, _ := strings.Cut(dest, "#")
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		links = append(links, Link{
			Raw:         body[m[0]:m[1]],
			Target:      target,
			Heading:     heading,
			DisplayText: body[m[2]:m[3]],
			Kind:        LinkMarkdown,
			Position:    m[0],
		})
	}

	sort.SliceStable(links, func(i, j int) bool { return links[i].Position < links[j].Position })
	return links
}

// firstHeading returns the text of the first level-one ATX heading
func firstHeading(body string) string {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// ParseNote builds a Note from a vault path and its content
func ParseNote(p, content string) *Note {
	fm, body := SplitFrontmatter(content)

	title := strings.TrimSpace(string(fm.Title))
	if title == "" {
		title = firstHeading(body)
	}

	return &Note{
		Path:        p,
		Name:        path.Base(p),
		ID:          strings.TrimSpace(string(fm.ID)),
		Title:       title,
		Aliases:     []string(fm.Aliases),
		Frontmatter: fm,
		Body:        body,
		Links:       ParseLinks(body),
		HasContent:  true,
	}
}
