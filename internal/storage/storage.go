// Package storage talks to the external file store holding the wedding
// photos, videos and message attachments.
//
// Folders are provider specific: Drive folder ids for Google Drive, key
// prefixes for S3. The caller picks them from configuration and never
// interprets them.
package storage

import (
	"context"
	"io"
	"mime"
	"path"
	"time"
)

// File is one stored object as listed by a provider.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ThumbnailURL string
	ViewURL      string
	DownloadURL  string
	CreatedAt    time.Time
}

// Provider is a remote file store.
type Provider interface {
	List(ctx context.Context, folder string) ([]File, error)
	Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (*File, error)
}

// contentTypeFor falls back on the extension when the caller did not know.
func contentTypeFor(name, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
