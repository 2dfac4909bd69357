package domain

import (
	"strings"
	"unicode/utf8"

	"tattooz/internal/prompt"
)

// MaxPromptLength bounds the user text forwarded upstream, in runes.
const MaxPromptLength = 1000

// GenerationRequest is the body of POST /api/generate.
type GenerationRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Count  int    `json:"count,omitempty"`
}

// Normalize trims the prompt, resolves the size and clamps count into
// [1, maxCount], using defaultCount when it is unset. Missing or unknown sizes
// resolve to prompt.DefaultSize.
func (r *GenerationRequest) Normalize(defaultCount, maxCount int) (prompt.Size, error) {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" {
		return "", ErrInvalidPrompt
	}
	if utf8.RuneCountInString(r.Prompt) > MaxPromptLength {
		r.Prompt = string([]rune(r.Prompt)[:MaxPromptLength])
	}

	size := prompt.ParseSize(r.Size)
	r.Size = string(size)

	if r.Count <= 0 {
		r.Count = defaultCount
	}
	if maxCount > 0 && r.Count > maxCount {
		r.Count = maxCount
	}
	if r.Count <= 0 {
		r.Count = 1
	}
	return size, nil
}
