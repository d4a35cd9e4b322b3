// Package ui formats terminal output for the dz command line.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a Message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a structured notice with optional hints.
//
//	❌ THEME NOT FOUND: aurra
//	   No theme named 'aurra' is installed.
//
//	   Did you mean: aurora?
//
//	   → List themes: dz theme list
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Format renders m
func (m Message) Format() string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, body, symbol = paint(m.NoColor, color.FgYellow, color.Bold), paint(m.NoColor, color.FgYellow), "⚠️"
	case LevelInfo:
		head, body, symbol = paint(m.NoColor, color.FgCyan, color.Bold), paint(m.NoColor, color.FgCyan), "ℹ️"
	default:
		head, body, symbol = paint(m.NoColor, color.FgRed, color.Bold), paint(m.NoColor, color.FgRed), "❌"
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(m.Context))
		body.Fprintf(&b, "   %s\n", m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Detail != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", m.Detail)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		paint(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		cyan := paint(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write prints m to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success prints a green check line
func Success(w io.Writer, message string, noColor bool) {
	paint(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// NotFound describes a missing theme, plugin or similar named thing
func NotFound(kind, name string, suggestions []string, listCommand string, noColor bool) Message {
	return Message{
		Context:     kind + " not found",
		Problem:     fmt.Sprintf("No %s named '%s' exists.", kind, name),
		Suggestions: suggestions,
		Hints:       []string{"List them: " + listCommand},
		NoColor:     noColor,
	}
}

// MigrationFailed describes a failed schema change
func MigrationFailed(problem string, noColor bool) Message {
	return Message{
		Context: "migration failed",
		Problem: problem,
		Detail:  "The failing migration was rolled back; earlier ones remain applied.",
		Hints: []string{
			"Check status: dz migrate status",
			"Undo the last migration: dz migrate down",
		},
		NoColor: noColor,
	}
}

// ConfigProblem describes a configuration that could not be loaded
func ConfigProblem(problem string, noColor bool) Message {
	return Message{
		Context: "configuration error",
		Problem: problem,
		Hints: []string{
			"Edit dz.yaml or set DZ_* environment variables",
			"Point at another file: dz --config path/to/dz.yaml",
		},
		NoColor: noColor,
	}
}

// Warning builds a warning with optional suggestions
func Warning(problem string, noColor bool) Message {
	return Message{Level: LevelWarning, Problem: problem, NoColor: noColor}
}
