package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	body, err := ArchiveAssets([]Asset{
		{Filename: "tattoo-1.png", Data: []byte("one")},
		{Filename: "tattoo-2.png", Data: []byte("two")},
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	if zr.File[0].Name != "tattoo-1.png" || zr.File[1].Name != "tattoo-2.png" {
		t.Fatalf("unexpected names: %s, %s", zr.File[0].Name, zr.File[1].Name)
	}
}

func TestArchiveAssetsEmpty(t *testing.T) {
	body, err := ArchiveAssets(nil)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("empty archive should still be valid: %v", err)
	}
}
