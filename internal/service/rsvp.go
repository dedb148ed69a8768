package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/notify"
	"github.com/sakif/wedding-rsvp/internal/repository"
)

// RSVPService writes and edits RSVP records.
//
// A submission is the acting guest's own response plus any number of
// responses entered on behalf of others. The whole submission is one
// transaction. The confirmation e-mail is queued afterwards and can never
// fail the submission.
type RSVPService struct {
	rsvps    repository.RSVPRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewRSVPService(rsvps repository.RSVPRepository, notifier Notifier, logger *slog.Logger) *RSVPService {
	return &RSVPService{rsvps: rsvps, notifier: notifier, logger: logger}
}

// OnBehalfInput is a response for another guest. Only the name is required.
type OnBehalfInput struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Attending bool   `json:"attending"`
	Dietary   string `json:"dietaryRequirements"`
	Songs     string `json:"songRequests"`
}

// SubmitInput is the RSVP form. Children and PlusOne only count when the
// matching Has flag is set.
type SubmitInput struct {
	FullName    string          `json:"fullName"`
	Email       string          `json:"email"`
	Attending   bool            `json:"attending"`
	Dietary     string          `json:"dietaryRequirements"`
	Songs       string          `json:"songRequests"`
	HasChildren bool            `json:"hasChildren"`
	Children    []model.Child   `json:"children"`
	HasPlusOne  bool            `json:"hasPlusOne"`
	PlusOne     *model.PlusOne  `json:"plusOne"`
	OnBehalf    []OnBehalfInput `json:"onBehalf"`
}

// PatchInput is an edit of an existing record. Absent fields are left
// alone. hasChildren/hasPlusOne false clears the sub-record.
type PatchInput struct {
	Attending   *bool          `json:"attending"`
	Dietary     *string        `json:"dietaryRequirements"`
	Songs       *string        `json:"songRequests"`
	HasChildren *bool          `json:"hasChildren"`
	Children    []model.Child  `json:"children"`
	HasPlusOne  *bool          `json:"hasPlusOne"`
	PlusOne     *model.PlusOne `json:"plusOne"`
}

// Submission is what was stored.
type Submission struct {
	RSVP     *model.RSVP   `json:"rsvp,omitempty"`
	OnBehalf []*model.RSVP `json:"onBehalf"`
	// NotificationID is the confirmation task, empty when none was queued.
	NotificationID string `json:"notificationId,omitempty"`
}

// Submit stores the acting guest's own response (replacing any earlier
// one) and the on-behalf batch together.
func (s *RSVPService) Submit(ctx context.Context, userID string, in SubmitInput) (*Submission, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	if fullName == "" {
		return nil, apperror.ValidationFailed("fullName", "Full name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}

	onBehalf, err := buildOnBehalf(userID, in.OnBehalf)
	if err != nil {
		return nil, err
	}

	owner := userID
	own := &model.RSVP{
		UserID:      &owner,
		FullName:    fullName,
		Email:       email,
		Attending:   in.Attending,
		Dietary:     strings.TrimSpace(in.Dietary),
		Songs:       strings.TrimSpace(in.Songs),
		SubmittedBy: userID,
	}
	if in.HasChildren {
		own.Children = model.CleanChildren(in.Children)
	}
	if in.HasPlusOne {
		own.PlusOne = model.CleanPlusOne(in.PlusOne)
	}

	if err := s.rsvps.SaveSubmission(ctx, own, onBehalf); err != nil {
		return nil, fmt.Errorf("service/rsvp: saving submission for %s: %w", userID, err)
	}

	s.logger.Info("rsvp submitted",
		slog.String("userID", userID),
		slog.String("rsvpID", own.ID),
		slog.Bool("attending", own.Attending),
		slog.Int("onBehalf", len(onBehalf)),
	)

	sub := &Submission{RSVP: own, OnBehalf: onBehalf}
	sub.NotificationID = s.confirm(own, userID)
	return sub, nil
}

// SubmitOnBehalf stores only on-behalf responses.
func (s *RSVPService) SubmitOnBehalf(ctx context.Context, userID string, in []OnBehalfInput) (*Submission, error) {
	if len(in) == 0 {
		return nil, apperror.ValidationFailed("onBehalf", "Add at least one guest")
	}
	onBehalf, err := buildOnBehalf(userID, in)
	if err != nil {
		return nil, err
	}

	if err := s.rsvps.SaveSubmission(ctx, nil, onBehalf); err != nil {
		return nil, fmt.Errorf("service/rsvp: saving on-behalf batch for %s: %w", userID, err)
	}

	s.logger.Info("on-behalf rsvps submitted",
		slog.String("userID", userID),
		slog.Int("count", len(onBehalf)),
	)
	return &Submission{OnBehalf: onBehalf}, nil
}

// Mine returns the acting guest's own response.
func (s *RSVPService) Mine(ctx context.Context, userID string) (*model.RSVP, error) {
	r, err := s.rsvps.GetRSVPByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/rsvp: fetching rsvp of %s: %w", userID, err)
	}
	return r, nil
}

// UpdateMine edits the acting guest's own response.
func (s *RSVPService) UpdateMine(ctx context.Context, userID string, in PatchInput) (*model.RSVP, error) {
	existing, err := s.rsvps.GetRSVPByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/rsvp: fetching rsvp of %s: %w", userID, err)
	}
	return s.update(ctx, existing.ID, in)
}

// Update edits any record. Callers must have checked the elevated
// privilege.
func (s *RSVPService) Update(ctx context.Context, id string, in PatchInput) (*model.RSVP, error) {
	return s.update(ctx, id, in)
}

func (s *RSVPService) update(ctx context.Context, id string, in PatchInput) (*model.RSVP, error) {
	patch := in.toPatch()
	updated, err := s.rsvps.UpdateRSVP(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("service/rsvp: updating rsvp %s: %w", id, err)
	}
	s.logger.Info("rsvp updated", slog.String("rsvpID", id))
	return updated, nil
}

// Delete removes any record. Callers must have checked the elevated
// privilege and the confirmation.
func (s *RSVPService) Delete(ctx context.Context, id string) error {
	if err := s.rsvps.DeleteRSVP(ctx, id); err != nil {
		return fmt.Errorf("service/rsvp: deleting rsvp %s: %w", id, err)
	}
	s.logger.Info("rsvp deleted", slog.String("rsvpID", id))
	return nil
}

// CountAttending is the confirmed guest count shown on the venue page.
func (s *RSVPService) CountAttending(ctx context.Context) (int, error) {
	n, err := s.rsvps.CountAttending(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/rsvp: counting attending: %w", err)
	}
	return n, nil
}

// confirm queues the confirmation e-mail. Failures are logged only.
func (s *RSVPService) confirm(r *model.RSVP, userID string) string {
	id, err := s.notifier.Submit(notify.Notification{
		Kind:        notify.KindRSVPConfirmation,
		Email:       r.Email,
		FullName:    r.FullName,
		SubmittedBy: userID,
	})
	if err != nil {
		s.logger.Warn("queueing rsvp confirmation",
			slog.String("rsvpID", r.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return id
}

func buildOnBehalf(userID string, in []OnBehalfInput) ([]*model.RSVP, error) {
	out := make([]*model.RSVP, 0, len(in))
	for i, g := range in {
		name := strings.TrimSpace(g.FullName)
		if name == "" {
			return nil, apperror.ValidationFailed(
				fmt.Sprintf("onBehalf[%d].fullName", i),
				fmt.Sprintf("Guest %d needs a name", i+1),
			)
		}
		out = append(out, &model.RSVP{
			FullName:    name,
			Email:       strings.TrimSpace(g.Email),
			Attending:   g.Attending,
			Dietary:     strings.TrimSpace(g.Dietary),
			Songs:       strings.TrimSpace(g.Songs),
			SubmittedBy: userID,
		})
	}
	return out, nil
}

func (in PatchInput) toPatch() model.RSVPPatch {
	p := model.RSVPPatch{Attending: in.Attending}
	if in.Dietary != nil {
		v := strings.TrimSpace(*in.Dietary)
		p.Dietary = &v
	}
	if in.Songs != nil {
		v := strings.TrimSpace(*in.Songs)
		p.Songs = &v
	}

	switch {
	case in.HasChildren != nil && !*in.HasChildren:
		p.SetChildren = true
	case in.HasChildren != nil || in.Children != nil:
		p.SetChildren = true
		p.Children = model.CleanChildren(in.Children)
	}

	switch {
	case in.HasPlusOne != nil && !*in.HasPlusOne:
		p.SetPlusOne = true
	case in.HasPlusOne != nil || in.PlusOne != nil:
		p.SetPlusOne = true
		p.PlusOne = model.CleanPlusOne(in.PlusOne)
	}
	return p
}
