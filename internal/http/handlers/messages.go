package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgGenerateFailed = "Failed to generate images"
	msgPromptRequired = "Prompt is required"
	msgHistoryFailed  = "Failed to load generation history"
	msgArchiveMissing = "No archived images for this batch"
	msgArchiveFailed  = "Failed to build archive"
	msgArchiveOff     = "Image archive is not enabled"
)

var indonesian = map[string]string{
	msgGenerateFailed: "Gagal membuat gambar",
	msgPromptRequired: "Prompt wajib diisi",
	msgHistoryFailed:  "Gagal memuat riwayat generasi",
	msgArchiveMissing: "Tidak ada gambar tersimpan untuk batch ini",
	msgArchiveFailed:  "Gagal membuat arsip",
	msgArchiveOff:     "Arsip gambar tidak aktif",
}

func init() {
	for key, text := range indonesian {
		_ = message.SetString(language.Indonesian, key, text)
		_ = message.SetString(language.English, key, key)
	}
}

// localize renders key in locale, falling back to the English text.
func localize(locale, key string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf(key)
}
