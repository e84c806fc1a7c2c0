package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider talks to Google Calendar with a long-lived refresh token.
// The oauth2 token source refreshes access tokens on demand.
type GoogleProvider struct {
	svc        *gcal.Service
	calendarID string
}

type GoogleConfig struct {
	CalendarID   string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.RefreshToken == "" {
		return nil, errors.New("calendar: refresh token not configured")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar: new service: %w", err)
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleProvider{svc: svc, calendarID: calendarID}, nil
}

func (g *GoogleProvider) Create(ctx context.Context, spec EventSpec) (string, error) {
	ev, err := g.svc.Events.Insert(g.calendarID, toGoogleEvent(spec)).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return ev.Id, nil
}

func (g *GoogleProvider) Update(ctx context.Context, eventID string, spec EventSpec) (string, error) {
	ev, err := g.svc.Events.Update(g.calendarID, eventID, toGoogleEvent(spec)).
		SendUpdates("none").
		Context(ctx).
		Do()
	if isGone(err) {
		// removed on the calendar side, put it back
		return g.Create(ctx, spec)
	}
	if err != nil {
		return "", err
	}
	return ev.Id, nil
}

func (g *GoogleProvider) Delete(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).SendUpdates("none").Context(ctx).Do()
	if isGone(err) {
		return nil
	}
	return err
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

func toGoogleEvent(spec EventSpec) *gcal.Event {
	ev := &gcal.Event{
		Summary:     spec.Summary,
		Description: spec.Description,
		Location:    spec.Location,
		Start: &gcal.EventDateTime{
			DateTime: spec.Start.Format(time.RFC3339),
			TimeZone: spec.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: spec.End.Format(time.RFC3339),
			TimeZone: spec.TimeZone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, a := range spec.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a})
	}
	for _, r := range spec.Reminders {
		ev.Reminders.Overrides = append(ev.Reminders.Overrides, &gcal.EventReminder{
			Method:  "popup",
			Minutes: int64(r / time.Minute),
		})
	}
	return ev
}
