package reaction

import (
	"fmt"
	"strings"
	"text/template"
)

const defaultTemplate = `Act as a VR audience member reacting to this speech.

Generate a SHORT, NATURAL reaction (under 8 words) with emotional cues in brackets.

YOU MUST USE EXACTLY THIS FORMAT: [emotion] your short reaction

Examples of CORRECT responses:
[excited] That's absolutely brilliant!
[thoughtful] Makes me see things differently.
[surprised] Wow, I never considered that!
[amused] Haha, that's so true!

DO NOT include your reasoning or thinking. ONLY output the reaction in the exact format shown.

Here's the speech to react to: {{.Transcript}}
`

// Prompt renders the text-generation prompt for a transcript.
type Prompt struct {
	tmpl *template.Template
}

// NewPrompt parses text as a template with a {{.Transcript}} field.
// An empty text selects the built-in audience prompt.
func NewPrompt(text string) (*Prompt, error) {
	if text == "" {
		text = defaultTemplate
	}
	tmpl, err := template.New("reaction").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// DefaultPrompt returns the built-in audience prompt.
func DefaultPrompt() *Prompt {
	p, err := NewPrompt("")
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prompt) Render(transcript string) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, struct{ Transcript string }{Transcript: strings.TrimSpace(transcript)}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
