// Package reaction renders the audience-reaction prompt and parses the model's
// "[emotion] text" answer.
package reaction

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Reaction is a parsed model answer.
type Reaction struct {
	Emotion string
	Text    string
}

// Parse splits raw into an emotion label and reaction text. It never fails:
// output without a bracketed label gets fallbackEmotion and the whole output as text.
func Parse(raw, fallbackEmotion string) Reaction {
	cleaned := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))

	open := strings.Index(cleaned, "[")
	if open < 0 {
		return Reaction{Emotion: fallbackEmotion, Text: cleaned}
	}
	end := strings.Index(cleaned[open:], "]")
	if end < 0 {
		return Reaction{Emotion: fallbackEmotion, Text: cleaned}
	}
	end += open

	emotion := strings.TrimSpace(cleaned[open+1 : end])
	if emotion == "" {
		emotion = fallbackEmotion
	}
	text := strings.TrimSpace(cleaned[end+1:])
	if text == "" {
		text = cleaned
	}
	return Reaction{Emotion: emotion, Text: text}
}
