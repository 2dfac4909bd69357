package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"tattooz/internal/imagegen"
	"tattooz/pkg/zip"
)

const batchRoot = "generations"

// BatchArchive stores the successful images of each batch and bundles them
// into a zip on demand.
type BatchArchive struct {
	files *FileStore
}

func NewBatchArchive(files *FileStore) *BatchArchive {
	return &BatchArchive{files: files}
}

// SaveBatch decodes each data URL and writes it under the batch directory.
// Slots keep their 1-based position in the file name.
func (a *BatchArchive) SaveBatch(ctx context.Context, batchID uuid.UUID, images map[int]string) (int, error) {
	saved := 0
	for index, dataURL := range images {
		mime, data, err := imagegen.DecodeDataURL(dataURL)
		if err != nil {
			return saved, fmt.Errorf("storage: slot %d: %w", index, err)
		}
		key := fmt.Sprintf("%s/%s/tattoo-%d%s", batchRoot, batchID, index+1, extensionFor(mime))
		if _, err := a.files.Write(ctx, key, data); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// Zip returns a zip of every stored image for the batch, or ErrNotFound.
func (a *BatchArchive) Zip(ctx context.Context, batchID uuid.UUID) ([]byte, error) {
	keys, err := a.files.List(ctx, path.Join(batchRoot, batchID.String()))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	assets := make([]zip.Asset, 0, len(keys))
	for _, key := range keys {
		data, err := a.files.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), Data: data})
	}
	return zip.ArchiveAssets(assets)
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
