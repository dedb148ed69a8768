package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wedding-rsvp/internal/apperror"
)

func newTestMessageService(t *testing.T) (*MessageService, *fakeMessageRepo) {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)
	repo := &fakeMessageRepo{}
	return NewMessageService(repo, loc, testLogger()), repo
}

func TestCompose(t *testing.T) {
	svc, _ := newTestMessageService(t)

	msg, err := svc.Compose(context.Background(), "u1", ComposeInput{Name: " ", Message: "  Congrats!  "})
	require.NoError(t, err)
	assert.Equal(t, "Congrats!", msg.Message)
	assert.Nil(t, msg.Name, "blank name is stored as null")
	assert.Nil(t, msg.MediaURL)
	assert.True(t, msg.IsPublic, "public by default")
	assert.True(t, msg.Approved)
	require.NotNil(t, msg.UserID)
	assert.Equal(t, "u1", *msg.UserID)

	private := false
	msg, err = svc.Compose(context.Background(), "", ComposeInput{Message: "for the couple", IsPublic: &private})
	require.NoError(t, err)
	assert.False(t, msg.IsPublic)
	assert.Nil(t, msg.UserID)
}

func TestCompose_EmptyMessage(t *testing.T) {
	svc, repo := newTestMessageService(t)

	_, err := svc.Compose(context.Background(), "u1", ComposeInput{Message: " \n\t "})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Message cannot be empty.", err.Error())
	assert.Empty(t, repo.messages)
}

func TestWall(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()
	private := false

	long := strings.Repeat("é", 130)
	_, err := svc.Compose(ctx, "u1", ComposeInput{Message: "short one", MediaURL: "https://drive.google.com/uc?export=view&id=abc"})
	require.NoError(t, err)
	_, err = svc.Compose(ctx, "u1", ComposeInput{Message: "hidden", IsPublic: &private})
	require.NoError(t, err)
	longMsg, err := svc.Compose(ctx, "u1", ComposeInput{Name: "Gran", Message: long, MediaURL: "https://files.example/first-dance.mp4"})
	require.NoError(t, err)

	wall, err := svc.Wall(ctx, WallQuery{})
	require.NoError(t, err)
	require.Len(t, wall, 2, "private messages are not on the wall")

	newest := wall[0]
	assert.Equal(t, longMsg.ID, newest.ID)
	assert.True(t, newest.Truncated)
	assert.Equal(t, strings.Repeat("é", 120)+"...", newest.Excerpt)
	assert.Equal(t, "video", newest.MediaType)
	// 10:03 UTC is 12:03 in Johannesburg.
	assert.Equal(t, "Feb 21, 2026 @ 12:03 PM", newest.PostedAt)

	assert.False(t, wall[1].Truncated)
	assert.Equal(t, "short one", wall[1].Excerpt)
	assert.Equal(t, "image", wall[1].MediaType)

	wall, err = svc.Wall(ctx, WallQuery{Expanded: longMsg.ID})
	require.NoError(t, err)
	assert.True(t, wall[0].Expanded)
	assert.Equal(t, long, wall[0].Excerpt)
}

func TestWall_ExpandedMustBeVisible(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()
	private := false

	hidden, err := svc.Compose(ctx, "u1", ComposeInput{Message: "for the couple", IsPublic: &private})
	require.NoError(t, err)

	_, err = svc.Wall(ctx, WallQuery{Expanded: hidden.ID})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Wall(ctx, WallQuery{Expanded: "no-such-message"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWall_Paging(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		_, err := svc.Compose(ctx, "u1", ComposeInput{Message: text})
		require.NoError(t, err)
	}

	wall, err := svc.Wall(ctx, WallQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, wall, 1)
	assert.Equal(t, "second", wall[0].Message)

	_, err = svc.Wall(ctx, WallQuery{Limit: -1})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestExcerptAndMediaKind(t *testing.T) {
	exact := strings.Repeat("a", 120)
	got, truncated := Excerpt(exact)
	assert.Equal(t, exact, got)
	assert.False(t, truncated)

	assert.Equal(t, "video", MediaKind("https://cdn.example/video/123"))
	assert.Equal(t, "video", MediaKind("clip.MP4?x=mp4"))
	assert.Equal(t, "image", MediaKind("https://cdn.example/photo.jpg"))
}
