package domain

import (
	"errors"
	"strings"
	"testing"

	"tattooz/internal/prompt"
)

func TestGenerationRequestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		req       GenerationRequest
		wantSize  prompt.Size
		wantCount int
		wantErr   error
	}{
		{name: "defaults", req: GenerationRequest{Prompt: " owl "}, wantSize: prompt.DefaultSize, wantCount: 2},
		{name: "explicit size", req: GenerationRequest{Prompt: "owl", Size: "1X1", Count: 1}, wantSize: prompt.Size1x1, wantCount: 1},
		{name: "unknown size falls back", req: GenerationRequest{Prompt: "owl", Size: "9x9"}, wantSize: prompt.DefaultSize, wantCount: 2},
		{name: "count capped", req: GenerationRequest{Prompt: "owl", Size: "5x5", Count: 12}, wantSize: prompt.Size5x5, wantCount: 4},
		{name: "empty prompt", req: GenerationRequest{Prompt: "   "}, wantErr: ErrInvalidPrompt},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			size, err := req.Normalize(2, 4)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if size != tc.wantSize || req.Size != string(tc.wantSize) {
				t.Fatalf("size = %q (%q), want %q", size, req.Size, tc.wantSize)
			}
			if req.Count != tc.wantCount {
				t.Fatalf("count = %d, want %d", req.Count, tc.wantCount)
			}
			if req.Prompt != strings.TrimSpace(tc.req.Prompt) {
				t.Fatalf("prompt not trimmed: %q", req.Prompt)
			}
		})
	}
}

func TestGenerationRequestTruncatesPrompt(t *testing.T) {
	req := GenerationRequest{Prompt: strings.Repeat("a", MaxPromptLength+50)}
	if _, err := req.Normalize(1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Prompt) != MaxPromptLength {
		t.Fatalf("expected prompt truncated to %d, got %d", MaxPromptLength, len(req.Prompt))
	}
}
