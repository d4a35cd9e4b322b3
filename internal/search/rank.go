package search

import (
	"sort"
	"strings"
)

// Item types
const (
	ItemAction = "action"
	ItemFile   = "file"
)

// Item is one palette row
type Item struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Path  string `json:"path,omitempty"`
	Name  string `json:"name,omitempty"`
	Score int    `json:"score,omitempty"`
}

// Action is a palette command
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// PluginIcon is shown for plugin commands without their own icon
const PluginIcon = "🔌"

// DefaultActions are the built-in commands shown for an empty query
var DefaultActions = []Action{
	{ID: "new-note", Label: "New Note", Icon: "📝"},
	{ID: "new-zettel", Label: "New Zettel", Icon: "🗒"},
	{ID: "daily-note", Label: "Daily Note", Icon: "📅"},
	{ID: "capture", Label: "Quick Capture", Icon: "📥"},
	{ID: "new-folder", Label: "New Folder", Icon: "📁"},
	{ID: "toggle-preview", Label: "Toggle Preview", Icon: "👁"},
	{ID: "collapse-all", Label: "Collapse All Folders", Icon: "⬆"},
}

// scoreName ranks a file by its name and path only
func scoreName(name, p, text string) int {
	name, p = strings.ToLower(name), strings.ToLower(p)
	switch {
	case name == text:
		return 100
	case strings.Contains(name, text):
		return 50
	case strings.Contains(p, text):
		return 40
	}
	return 0
}

// ScoreBasic is used when no note metadata is available: every file
// matching the text by name scores 10, by path only 5.
func ScoreBasic(name, p string, q Query) int {
	name, p = strings.ToLower(name), strings.ToLower(p)
	if q.Text != "" && !strings.Contains(p, q.Text) && !strings.Contains(name, q.Text) {
		return 0
	}
	if strings.Contains(name, q.Text) {
		return 10
	}
	return 5
}

// passesFilters applies operator filters to a note with readable content
func passesFilters(n *Note, f Filters) bool {
	fm := n.Frontmatter
	if f.Type != "" && string(fm.Type) != f.Type {
		return false
	}
	if f.Status != "" && string(fm.Status) != f.Status {
		return false
	}
	if f.Tag != "" && !anyMatch([]string(fm.Tags), func(t string) bool { return t == f.Tag }) {
		return false
	}
	if f.HasLinks && len(n.Links) == 0 {
		return false
	}
	if f.HasBacklinks && len(n.Backlinks) == 0 {
		return false
	}
	if f.LinkTo != "" {
		found := false
		for _, l := range n.Links {
			t := strings.ToLower(l.Target)
			if t == f.LinkTo || strings.TrimSuffix(t, ".md") == f.LinkTo {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.LinkedBy != "" && !anyMatch(n.Backlinks, func(b string) bool {
		return strings.Contains(b, f.LinkedBy) || strings.TrimSuffix(b, ".md") == f.LinkedBy
	}) {
		return false
	}
	return true
}

// anyMatch applies pred to the lower-cased values
func anyMatch(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if pred(strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// Score ranks an indexed note against q. Zero means excluded.
func Score(n *Note, q Query) int {
	text := q.Text
	active := q.Filters.Active()

	if text == "" && !active {
		return 1
	}

	if !n.HasContent {
		if active {
			return 0
		}
		return scoreName(n.Name, n.Path, text)
	}

	if !passesFilters(n, q.Filters) {
		return 0
	}
	if text == "" {
		return 1
	}

	score := scoreName(n.Name, n.Path, text)

	if n.Title != "" {
		title := strings.ToLower(n.Title)
		if title == text {
			score += 90
		} else if strings.Contains(title, text) {
			score += 45
		}
	}
	if n.ID != "" && strings.Contains(strings.ToLower(n.ID), text) {
		score += 60
	}
	if anyMatch(n.Aliases, func(a string) bool { return strings.Contains(a, text) }) {
		score += 30
	}
	if anyMatch([]string(n.Frontmatter.Tags), func(t string) bool { return strings.Contains(t, text) }) {
		score += 20
	}
	if strings.Contains(strings.ToLower(n.Body), text) {
		score += 5
	}
	return score
}

// Rank scores notes against q and returns matching files, best first.
// With withMetadata false only names and paths are considered.
func Rank(notes []*Note, q Query, withMetadata bool) []Item {
	items := make([]Item, 0, len(notes))
	for _, n := range notes {
		var s int
		if withMetadata {
			s = Score(n, q)
		} else {
			s = ScoreBasic(n.Name, n.Path, q)
		}
		if s > 0 {
			items = append(items, Item{Type: ItemFile, Path: n.Path, Name: n.Name, Score: s})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items
}

// Palette builds the full palette list. Actions are only offered for an
// empty query outside link mode.
func Palette(notes []*Note, rawQuery string, linkMode, withMetadata bool, extra []Action) []Item {
	q := ParseQuery(rawQuery)
	files := Rank(notes, q, withMetadata)
	if linkMode || q.Raw != "" {
		return files
	}

	items := make([]Item, 0, len(DefaultActions)+len(extra)+len(files))
	for _, a := range append(append([]Action{}, DefaultActions...), extra...) {
		icon := a.Icon
		if icon == "" {
			icon = PluginIcon
		}
		items = append(items, Item{Type: ItemAction, ID: a.ID, Label: a.Label, Icon: icon})
	}
	return append(items, files...)
}
