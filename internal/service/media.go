package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/gallery"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/storage"
)

const storageName = "Media storage"

// MediaFolders are the provider folders (Drive ids or S3 prefixes).
type MediaFolders struct {
	Photos   string
	Videos   string
	Messages string
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// AlbumView is one screen of the album.
type AlbumView struct {
	Filter gallery.Filter `json:"filter"`
	gallery.Page
}

// LightboxView is the lightbox state after a key press.
type LightboxView struct {
	Open  bool              `json:"open"`
	Index int               `json:"index"`
	Total int               `json:"total"`
	Item  *model.MediaAsset `json:"item,omitempty"`
}

// MediaService lists and uploads album media through a storage provider.
// A nil provider means storage is not configured; every call then reports
// apperror.ErrUnavailable.
type MediaService struct {
	provider storage.Provider
	folders  MediaFolders
	loc      *time.Location
	logger   *slog.Logger
}

func NewMediaService(provider storage.Provider, folders MediaFolders, loc *time.Location, logger *slog.Logger) *MediaService {
	if loc == nil {
		loc = time.UTC
	}
	return &MediaService{provider: provider, folders: folders, loc: loc, logger: logger}
}

// Album lists both folders and returns the first loaded items matching
// filter, grouped by day.
func (s *MediaService) Album(ctx context.Context, filter string, loaded int) (*AlbumView, error) {
	f, err := gallery.ParseFilter(filter)
	if err != nil {
		return nil, apperror.ValidationFailed("filter", err.Error())
	}
	items, err := s.items(ctx, f)
	if err != nil {
		return nil, err
	}
	return &AlbumView{Filter: f, Page: gallery.Paginate(items, loaded, s.loc)}, nil
}

// Lightbox moves the preview over the currently visible items.
func (s *MediaService) Lightbox(ctx context.Context, filter string, loaded, index int, key string) (*LightboxView, error) {
	view, err := s.Album(ctx, filter, loaded)
	if err != nil {
		return nil, err
	}

	next, open, err := gallery.Navigate(index, len(view.Items), key)
	if err != nil {
		return nil, apperror.ValidationFailed("index", err.Error())
	}

	lb := &LightboxView{Open: open, Index: next, Total: len(view.Items)}
	if open {
		item := view.Items[next]
		lb.Item = &item
	}
	return lb, nil
}

func (s *MediaService) items(ctx context.Context, f gallery.Filter) ([]model.MediaAsset, error) {
	if s.provider == nil {
		return nil, apperror.Unavailable(storageName, nil)
	}

	var photos, videos []model.MediaAsset
	if f != gallery.FilterVideo {
		files, err := s.provider.List(ctx, s.folders.Photos)
		if err != nil {
			return nil, s.storageError("listing photos", err)
		}
		photos = gallery.Assets(files, model.MediaPhoto)
	}
	if f != gallery.FilterPhoto {
		files, err := s.provider.List(ctx, s.folders.Videos)
		if err != nil {
			return nil, s.storageError("listing videos", err)
		}
		videos = gallery.Assets(files, model.MediaVideo)
	}
	return gallery.Apply(gallery.Merge(photos, videos), f), nil
}

// Upload stores files in the photo or video folder, named after the
// uploading guest so the album can credit them.
func (s *MediaService) Upload(ctx context.Context, fullName string, mediaType model.MediaType, files []UploadFile) ([]model.MediaAsset, error) {
	if s.provider == nil {
		return nil, apperror.Unavailable(storageName, nil)
	}
	if len(files) == 0 {
		return nil, apperror.ValidationFailed("files", "Choose at least one file to upload")
	}

	var folder string
	switch mediaType {
	case model.MediaPhoto:
		folder = s.folders.Photos
	case model.MediaVideo:
		folder = s.folders.Videos
	default:
		return nil, apperror.ValidationFailed("type", "Upload type must be photo or video")
	}

	out := make([]model.MediaAsset, 0, len(files))
	for _, file := range files {
		name := gallery.UploadName(fullName, file.Filename)
		stored, err := s.provider.Upload(ctx, folder, name, file.ContentType, file.Body)
		if err != nil {
			return nil, s.storageError("uploading "+name, err)
		}
		out = append(out, gallery.Assets([]storage.File{*stored}, mediaType)...)
	}

	s.logger.Info("media uploaded",
		slog.String("type", string(mediaType)),
		slog.Int("files", len(out)),
	)
	return out, nil
}

// UploadMessageMedia stores a message attachment and returns its view URL.
func (s *MediaService) UploadMessageMedia(ctx context.Context, fullName string, file UploadFile) (string, error) {
	if s.provider == nil || s.folders.Messages == "" {
		return "", apperror.Unavailable(storageName, nil)
	}

	name := gallery.UploadName(fullName, file.Filename)
	stored, err := s.provider.Upload(ctx, s.folders.Messages, name, file.ContentType, file.Body)
	if err != nil {
		return "", s.storageError("uploading attachment "+name, err)
	}
	return stored.ViewURL, nil
}

// storageError separates a guest abandoning the request from the provider
// failing.
func (s *MediaService) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return apperror.Cancelled("Upload cancelled.")
	}
	s.logger.Error("media storage failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("service/media: %s: %w", op, apperror.Unavailable(storageName, err))
}
