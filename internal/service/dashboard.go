package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/repository"
)

// ExportFilename is the download name of the CSV export.
const ExportFilename = "rsvp_export.csv"

// Attendance filters.
const (
	FilterAll          = "all"
	FilterAttending    = "attending"
	FilterNotAttending = "not_attending"
)

// Sort orders.
const (
	SortCreatedAt = "created_at"
	SortName      = "name"
	SortEmail     = "email"
)

// ListQuery is the admin view's filter, sort and search box.
type ListQuery struct {
	Filter string
	Sort   string
	Search string
}

// Summary counts are always over every record, not the filtered view.
type Summary struct {
	Total        int `json:"total"`
	Attending    int `json:"attending"`
	NotAttending int `json:"notAttending"`
	WithChildren int `json:"withChildren"`
}

type DashboardView struct {
	Summary Summary      `json:"summary"`
	RSVPs   []model.RSVP `json:"rsvps"`
}

// DashboardService builds the admin list and its CSV export.
type DashboardService struct {
	rsvps repository.RSVPRepository
}

func NewDashboardService(rsvps repository.RSVPRepository) *DashboardService {
	return &DashboardService{rsvps: rsvps}
}

// ParseListQuery validates the raw query values. Empty values take the
// defaults.
func ParseListQuery(filter, sortBy, search string) (ListQuery, error) {
	q := ListQuery{Filter: FilterAll, Sort: SortCreatedAt, Search: strings.TrimSpace(search)}

	switch filter {
	case "":
	case FilterAll, FilterAttending, FilterNotAttending:
		q.Filter = filter
	default:
		return q, apperror.ValidationFailed("filter", fmt.Sprintf("Unknown filter %q", filter))
	}

	switch sortBy {
	case "":
	case SortCreatedAt, SortName, SortEmail:
		q.Sort = sortBy
	default:
		return q, apperror.ValidationFailed("sort", fmt.Sprintf("Unknown sort %q", sortBy))
	}
	return q, nil
}

// List loads every record and applies q.
func (s *DashboardService) List(ctx context.Context, q ListQuery) (*DashboardView, error) {
	all, err := s.rsvps.ListRSVPs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: listing rsvps: %w", err)
	}
	return &DashboardView{
		Summary: Summarize(all),
		RSVPs:   ApplyListQuery(all, q),
	}, nil
}

// Export writes the filtered view as CSV.
func (s *DashboardService) Export(ctx context.Context, q ListQuery, w io.Writer) error {
	view, err := s.List(ctx, q)
	if err != nil {
		return err
	}
	return WriteCSV(w, view.RSVPs)
}

// Summarize counts all records.
func Summarize(all []model.RSVP) Summary {
	sum := Summary{Total: len(all)}
	for _, r := range all {
		if r.Attending {
			sum.Attending++
		} else {
			sum.NotAttending++
		}
		if len(r.Children) > 0 {
			sum.WithChildren++
		}
	}
	return sum
}

// ApplyListQuery filters, searches and sorts a copy of all, which is
// expected newest first.
func ApplyListQuery(all []model.RSVP, q ListQuery) []model.RSVP {
	needle := strings.ToLower(q.Search)
	out := make([]model.RSVP, 0, len(all))
	for _, r := range all {
		switch q.Filter {
		case FilterAttending:
			if !r.Attending {
				continue
			}
		case FilterNotAttending:
			if r.Attending {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.FullName+" "+r.Email), needle) {
			continue
		}
		out = append(out, r)
	}

	switch q.Sort {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
		})
	case SortEmail:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

// WriteCSV renders rows under the export header.
func WriteCSV(w io.Writer, rows []model.RSVP) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Email", "Attending", "Dietary", "Song Requests", "Created At"}); err != nil {
		return fmt.Errorf("service/dashboard: writing csv header: %w", err)
	}
	for _, r := range rows {
		attending := "No"
		if r.Attending {
			attending = "Yes"
		}
		if err := cw.Write([]string{
			r.FullName,
			r.Email,
			attending,
			r.Dietary,
			r.Songs,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("service/dashboard: writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("service/dashboard: flushing csv: %w", err)
	}
	return nil
}
