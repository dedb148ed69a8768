package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/wedding-rsvp/internal/weather"
)

// Venue coordinates used for the weather lookup.
const (
	VenueLatitude  = -26.0587
	VenueLongitude = 28.0063
)

// FAQ is one question on the venue page.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VenueInfo is the fixed part of the venue page.
type VenueInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	DressCode string `json:"dressCode"`
	FAQs      []FAQ  `json:"faqs"`
}

var venueInfo = VenueInfo{
	Name:      "Chocolat et Café",
	Address:   "383 Graham Rd, Shere, 0084",
	Phone:     "+27 87 808 8413",
	Website:   "https://www.chocolatetcafe.co.za",
	DressCode: "Casual / Formal",
	FAQs: []FAQ{
		{Question: "Is there parking?", Answer: "Yes, free on-site parking is available for all guests."},
		{Question: "Is the venue wheelchair accessible?", Answer: "Yes, the venue and restrooms are wheelchair accessible."},
		{Question: "Can I bring my children?", Answer: "Children are welcome. Please list them on your RSVP so we can plan for them."},
		{Question: "Are there vegan options?", Answer: "Yes. Add your dietary requirements to your RSVP and the kitchen will cater for you."},
	},
}

// VenuePage is everything the venue page shows.
type VenuePage struct {
	Venue      VenueInfo           `json:"venue"`
	GuestCount int                 `json:"guestCount"`
	Countdown  string              `json:"countdown"`
	Weather    *weather.Conditions `json:"weather"`
}

// WeatherSource is satisfied by *weather.Client.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// AttendingCounter is satisfied by *RSVPService.
type AttendingCounter interface {
	CountAttending(ctx context.Context) (int, error)
}

// VenueService assembles the venue page.
type VenueService struct {
	counter     AttendingCounter
	weather     WeatherSource
	weddingDate time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// NewVenueService builds the service. weather may be nil.
func NewVenueService(counter AttendingCounter, weather WeatherSource, weddingDate time.Time, logger *slog.Logger) *VenueService {
	return &VenueService{
		counter:     counter,
		weather:     weather,
		weddingDate: weddingDate,
		now:         time.Now,
		logger:      logger,
	}
}

// Page gathers the venue page. A weather failure leaves Weather nil and
// never fails the page.
func (s *VenueService) Page(ctx context.Context) (*VenuePage, error) {
	count, err := s.counter.CountAttending(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/venue: %w", err)
	}

	page := &VenuePage{
		Venue:      venueInfo,
		GuestCount: count,
		Countdown:  s.Countdown(),
	}

	if s.weather != nil {
		cond, err := s.weather.Current(ctx, VenueLatitude, VenueLongitude)
		if err != nil {
			s.logger.Warn("weather unavailable", slog.String("error", err.Error()))
		} else {
			page.Weather = cond
		}
	}
	return page, nil
}

// Countdown is the time left until the ceremony, as shown on the site.
func (s *VenueService) Countdown() string {
	return CountdownText(s.weddingDate.Sub(s.now()))
}

// CountdownText renders d, truncated to whole minutes.
func CountdownText(d time.Duration) string {
	if d <= 0 {
		return "It's the big day!"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60
	return fmt.Sprintf("%d days, %d hrs, %d mins until the wedding!", days, hours, mins)
}
