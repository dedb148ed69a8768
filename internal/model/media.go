package model

import "time"

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// MediaAsset is a file listed from the external storage provider.
// It is never persisted here; every field comes from the provider's listing
// except Uploader, which is inferred from the file name.
type MediaAsset struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         MediaType `json:"type"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PreviewURL   string    `json:"previewUrl"`
	DownloadURL  string    `json:"downloadUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	Uploader     string    `json:"uploader"`
}
