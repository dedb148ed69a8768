package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // Africa/Johannesburg on hosts without a zoneinfo database

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/repository"
)

const (
	excerptRunes    = 120
	postedAtLayout  = "Jan 2, 2006 @ 3:04 PM"
	mediaKindImage  = "image"
	mediaKindVideo  = "video"
	emptyMessageMsg = "Message cannot be empty."
)

// ComposeInput is the "leave a message" form.
type ComposeInput struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	MediaURL string `json:"mediaUrl"`
	// IsPublic defaults to true when absent.
	IsPublic *bool `json:"isPublic"`
}

// WallEntry is a message prepared for the wall.
type WallEntry struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	Message   string  `json:"message"`
	Excerpt   string  `json:"excerpt"`
	Truncated bool    `json:"truncated"`
	Expanded  bool    `json:"expanded"`
	MediaURL  *string `json:"mediaUrl"`
	MediaType string  `json:"mediaType,omitempty"`
	PostedAt  string  `json:"postedAt"`
}

// WallQuery selects a page of the wall. Expanded names a message whose full
// text replaces its excerpt; it must be a visible message.
type WallQuery struct {
	Expanded string
	Limit    int
	Offset   int
}

// MessageService runs the guest message board.
type MessageService struct {
	messages repository.MessageRepository
	loc      *time.Location
	logger   *slog.Logger
}

// NewMessageService formats timestamps in loc (the wedding's time zone).
func NewMessageService(messages repository.MessageRepository, loc *time.Location, logger *slog.Logger) *MessageService {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageService{messages: messages, loc: loc, logger: logger}
}

// Compose stores a message. Messages are approved on creation.
func (s *MessageService) Compose(ctx context.Context, userID string, in ComposeInput) (*model.GuestMessage, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, apperror.ValidationFailed("message", emptyMessageMsg)
	}

	msg := &model.GuestMessage{
		Name:     optional(in.Name),
		Message:  text,
		MediaURL: optional(in.MediaURL),
		IsPublic: in.IsPublic == nil || *in.IsPublic,
		Approved: true,
	}
	if userID != "" {
		msg.UserID = &userID
	}

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/message: creating message: %w", err)
	}

	s.logger.Info("guest message posted",
		slog.String("messageID", msg.ID),
		slog.Bool("public", msg.IsPublic),
		slog.Bool("media", msg.MediaURL != nil),
	)
	return msg, nil
}

// Wall returns the visible messages, newest first. The entry named by
// q.Expanded carries its full text as the excerpt.
func (s *MessageService) Wall(ctx context.Context, q WallQuery) ([]WallEntry, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, apperror.ValidationFailed("limit", "Paging values cannot be negative.")
	}
	if q.Expanded != "" {
		m, err := s.messages.GetMessageByID(ctx, q.Expanded)
		if err != nil {
			return nil, fmt.Errorf("service/message: loading expanded message: %w", err)
		}
		// Hidden messages are reported as missing.
		if !m.Visible() {
			return nil, apperror.NotFound("message", q.Expanded)
		}
	}

	msgs, err := s.messages.ListVisibleMessages(ctx, repository.ListOptions{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, fmt.Errorf("service/message: listing wall: %w", err)
	}

	out := make([]WallEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.entry(m, m.ID == q.Expanded))
	}
	return out, nil
}

func (s *MessageService) entry(m model.GuestMessage, expanded bool) WallEntry {
	excerpt, truncated := Excerpt(m.Message)
	if expanded {
		excerpt = m.Message
	}
	e := WallEntry{
		ID:        m.ID,
		Name:      m.Name,
		Message:   m.Message,
		Excerpt:   excerpt,
		Truncated: truncated,
		Expanded:  expanded,
		MediaURL:  m.MediaURL,
		PostedAt:  m.CreatedAt.In(s.loc).Format(postedAtLayout),
	}
	if m.MediaURL != nil {
		e.MediaType = MediaKind(*m.MediaURL)
	}
	return e
}

// Excerpt cuts msg to its first 120 characters, marking the cut with "...".
func Excerpt(msg string) (string, bool) {
	runes := []rune(msg)
	if len(runes) <= excerptRunes {
		return msg, false
	}
	return string(runes[:excerptRunes]) + "...", true
}

// MediaKind guesses how to render an attachment from its URL alone.
func MediaKind(url string) string {
	if strings.Contains(url, "mp4") || strings.Contains(url, "video") {
		return mediaKindVideo
	}
	return mediaKindImage
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
