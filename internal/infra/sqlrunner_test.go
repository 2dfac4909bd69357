package infra

import (
	"errors"
	"testing"
)

func TestSplitMarker(t *testing.T) {
	query := "\n--sql 0b7f5a9c-1d2e-4f3a-8b4c-5d6e7f8a9b0c\nselect 1\nfrom dual"
	marker, body, err := SplitMarker(query)
	if err != nil {
		t.Fatalf("SplitMarker error: %v", err)
	}
	if marker != "0b7f5a9c-1d2e-4f3a-8b4c-5d6e7f8a9b0c" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1\nfrom dual" {
		t.Fatalf("body = %q", body)
	}
}

func TestSplitMarkerRejectsUnmarkedQueries(t *testing.T) {
	for _, q := range []string{"", "select 1", "--sql not-a-uuid\nselect 1"} {
		if _, _, err := SplitMarker(q); !errors.Is(err, ErrMissingMarker) {
			t.Fatalf("SplitMarker(%q) err = %v, want ErrMissingMarker", q, err)
		}
	}
}
