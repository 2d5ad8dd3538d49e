// Package composer assembles prompt text from a framework template, filled
// field values, tone presets, and optional industry/role context.
package composer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFramework is returned when the requested framework id is not registered.
var ErrUnknownFramework = errors.New("unknown framework")

// Field is one section of a framework template.
type Field struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Framework is a named prompt-structuring template.
type Framework struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

var frameworks = []Framework{
	{
		ID:          "costar",
		Name:        "CO-STAR",
		Description: "Context, Objective, Style, Tone, Audience, Response format.",
		Fields: []Field{
			{Key: "context", Label: "Context", Required: true},
			{Key: "objective", Label: "Objective", Required: true},
			{Key: "style", Label: "Style"},
			{Key: "tone", Label: "Tone"},
			{Key: "audience", Label: "Audience"},
			{Key: "response", Label: "Response Format"},
		},
	},
	{
		ID:          "race",
		Name:        "RACE",
		Description: "Role, Action, Context, Expectation.",
		Fields: []Field{
			{Key: "role", Label: "Role", Required: true},
			{Key: "action", Label: "Action", Required: true},
			{Key: "context", Label: "Context"},
			{Key: "expectation", Label: "Expectation"},
		},
	},
	{
		ID:          "ape",
		Name:        "APE",
		Description: "Action, Purpose, Expectation.",
		Fields: []Field{
			{Key: "action", Label: "Action", Required: true},
			{Key: "purpose", Label: "Purpose", Required: true},
			{Key: "expectation", Label: "Expectation"},
		},
	},
	{
		ID:          "tag",
		Name:        "TAG",
		Description: "Task, Action, Goal.",
		Fields: []Field{
			{Key: "task", Label: "Task", Required: true},
			{Key: "action", Label: "Action", Required: true},
			{Key: "goal", Label: "Goal", Required: true},
		},
	},
	{
		ID:          "care",
		Name:        "CARE",
		Description: "Context, Action, Result, Example.",
		Fields: []Field{
			{Key: "context", Label: "Context", Required: true},
			{Key: "action", Label: "Action", Required: true},
			{Key: "result", Label: "Result"},
			{Key: "example", Label: "Example"},
		},
	},
}

// tones maps tone ids to the directive appended to a composed prompt.
var tones = map[string]string{
	"professional": "Maintain a professional, businesslike tone.",
	"friendly":     "Keep the tone warm and approachable.",
	"persuasive":   "Write persuasively; make a compelling case.",
	"technical":    "Use precise technical language and assume domain expertise.",
	"casual":       "Keep the language relaxed and conversational.",
	"empathetic":   "Acknowledge the reader's perspective with empathy.",
}

// Frameworks returns all registered frameworks.
func Frameworks() []Framework {
	out := make([]Framework, len(frameworks))
	copy(out, frameworks)
	return out
}

// Lookup returns the framework with the given id.
func Lookup(id string) (Framework, bool) {
	for _, f := range frameworks {
		if f.ID == id {
			return f, true
		}
	}
	return Framework{}, false
}

// Tones returns the known tone ids in sorted order.
func Tones() []string {
	ids := make([]string, 0, len(tones))
	for id := range tones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Request is one compose invocation.
type Request struct {
	Framework string            `json:"framework"`
	Fields    map[string]string `json:"fields"`
	Tones     []string          `json:"tones"`
	Industry  string            `json:"industry"`
	Role      string            `json:"role"`
}

// Compose renders the framework sections in order with the supplied values,
// then appends tone directives and industry/role context. Missing required
// fields and unknown framework ids are validation errors.
func Compose(req Request) (string, error) {
	fw, ok := Lookup(req.Framework)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFramework, req.Framework)
	}

	var missing []string
	for _, f := range fw.Fields {
		if f.Required && strings.TrimSpace(req.Fields[f.Key]) == "" {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("framework %q: missing required fields: %s", fw.ID, strings.Join(missing, ", "))
	}

	var sb strings.Builder
	for _, f := range fw.Fields {
		value := strings.TrimSpace(req.Fields[f.Key])
		if value == "" {
			continue
		}
		fmt.Fprintf(&sb, "# %s\n%s\n\n", f.Label, value)
	}

	if req.Industry != "" || req.Role != "" {
		sb.WriteString("# Perspective\n")
		if req.Role != "" {
			fmt.Fprintf(&sb, "Respond as a %s.\n", req.Role)
		}
		if req.Industry != "" {
			fmt.Fprintf(&sb, "The subject matter concerns the %s industry.\n", req.Industry)
		}
		sb.WriteString("\n")
	}

	var directives []string
	for _, id := range req.Tones {
		if d, ok := tones[id]; ok {
			directives = append(directives, d)
		}
	}
	if len(directives) > 0 {
		sb.WriteString("# Tone\n")
		for _, d := range directives {
			sb.WriteString(d)
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}
