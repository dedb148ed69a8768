package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/gallery"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/storage"
)

var testFolders = MediaFolders{Photos: "photos", Videos: "videos", Messages: "messages"}

func seededProvider() *fakeProvider {
	p := newFakeProvider()
	base := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		p.folders["photos"] = append(p.folders["photos"], storage.File{
			ID:        fmt.Sprintf("p%d", i),
			Name:      fmt.Sprintf("Ann_photo-%d.jpg", i),
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	p.folders["videos"] = []storage.File{
		{ID: "v0", Name: "first-dance.mp4", CreatedAt: base.Add(30 * time.Minute)},
		{ID: "v1", Name: "Bob_speech.mp4", CreatedAt: base.Add(-30 * time.Minute)},
	}
	return p
}

func TestAlbum(t *testing.T) {
	svc := NewMediaService(seededProvider(), testFolders, time.UTC, testLogger())

	view, err := svc.Album(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, gallery.FilterAll, view.Filter)
	assert.Equal(t, 14, view.Total)
	assert.Equal(t, gallery.PageSize, view.Loaded)
	assert.True(t, view.HasMore)
	assert.Equal(t, 18, view.NextLoaded)

	require.NotEmpty(t, view.Items)
	first := view.Items[0]
	assert.Equal(t, "v0", first.ID, "newest across both folders comes first")
	assert.Equal(t, model.MediaVideo, first.Type)
	assert.Equal(t, gallery.DefaultUploader, first.Uploader)
	assert.Equal(t, "Ann", view.Items[1].Uploader)

	view, err = svc.Album(context.Background(), "video", 9)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Total)
	assert.False(t, view.HasMore)
	assert.Equal(t, "Bob", view.Items[1].Uploader)

	_, err = svc.Album(context.Background(), "audio", 9)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestAlbum_StorageProblems(t *testing.T) {
	svc := NewMediaService(nil, testFolders, time.UTC, testLogger())
	_, err := svc.Album(context.Background(), "all", 9)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)

	p := newFakeProvider()
	p.listErr = errors.New("drive 500")
	svc = NewMediaService(p, testFolders, time.UTC, testLogger())
	_, err = svc.Album(context.Background(), "all", 9)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestLightbox(t *testing.T) {
	svc := NewMediaService(seededProvider(), testFolders, time.UTC, testLogger())
	ctx := context.Background()

	lb, err := svc.Lightbox(ctx, "all", 9, 8, gallery.KeyRight)
	require.NoError(t, err)
	assert.True(t, lb.Open)
	assert.Equal(t, 0, lb.Index, "wraps over the visible items only")
	assert.Equal(t, 9, lb.Total)
	require.NotNil(t, lb.Item)
	assert.Equal(t, "v0", lb.Item.ID)

	lb, err = svc.Lightbox(ctx, "all", 9, 0, gallery.KeyLeft)
	require.NoError(t, err)
	assert.Equal(t, 8, lb.Index)

	lb, err = svc.Lightbox(ctx, "all", 9, 3, gallery.KeyEscape)
	require.NoError(t, err)
	assert.False(t, lb.Open)
	assert.Nil(t, lb.Item)

	_, err = svc.Lightbox(ctx, "all", 9, 9, gallery.KeyRight)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpload(t *testing.T) {
	p := newFakeProvider()
	svc := NewMediaService(p, testFolders, time.UTC, testLogger())

	assets, err := svc.Upload(context.Background(), "Ann Guest", model.MediaVideo, []UploadFile{
		{Filename: "First Dance.MP4", ContentType: "video/mp4", Body: strings.NewReader("video-bytes")},
		{Filename: "speech.mov", Body: strings.NewReader("more")},
	})
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "AnnGuest_first-dance.mp4", assets[0].Name)
	assert.Equal(t, "AnnGuest", assets[0].Uploader)
	assert.Equal(t, model.MediaVideo, assets[0].Type)
	assert.Equal(t, "video-bytes", p.uploads["videos/AnnGuest_first-dance.mp4"])
	assert.Len(t, p.folders["videos"], 2)
}

func TestUpload_Validation(t *testing.T) {
	svc := NewMediaService(newFakeProvider(), testFolders, time.UTC, testLogger())

	_, err := svc.Upload(context.Background(), "Ann", model.MediaPhoto, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Upload(context.Background(), "Ann", "audio", []UploadFile{{Filename: "a.mp3", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpload_ClientAbortIsCancelled(t *testing.T) {
	p := newFakeProvider()
	p.uploadErr = fmt.Errorf("storage: drive upload: %w", context.Canceled)
	svc := NewMediaService(p, testFolders, time.UTC, testLogger())

	_, err := svc.Upload(context.Background(), "Ann", model.MediaPhoto, []UploadFile{{Filename: "a.jpg", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, apperror.ErrCancelled)
}

func TestUploadMessageMedia(t *testing.T) {
	p := newFakeProvider()
	svc := NewMediaService(p, testFolders, time.UTC, testLogger())

	url, err := svc.UploadMessageMedia(context.Background(), "Ann", UploadFile{Filename: "us.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/messages/Ann_us.png", url)

	svc = NewMediaService(p, MediaFolders{Photos: "photos", Videos: "videos"}, time.UTC, testLogger())
	_, err = svc.UploadMessageMedia(context.Background(), "Ann", UploadFile{Filename: "us.png", Body: strings.NewReader("png")})
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}
