// Package calendar syncs booked appointments to an external calendar and
// builds the matching ICS invite for the confirmation email.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leads-backend/internal/models"
	"leads-backend/internal/timeutil"
)

// Appointment length and reminder offsets
const (
	AppointmentLength = time.Hour
)

var DefaultReminders = []time.Duration{24 * time.Hour, time.Hour}

// EventSpec is everything a provider needs to place an appointment
type EventSpec struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
	Reminders   []time.Duration
}

// Provider is the calendar adapter. Update returns the id the provider now
// uses for the event, which may differ when it had to recreate it.
type Provider interface {
	Create(ctx context.Context, spec EventSpec) (string, error)
	Update(ctx context.Context, eventID string, spec EventSpec) (string, error)
	Delete(ctx context.Context, eventID string) error
}

// BuildEvent composes the appointment for a lead in appointment_set
func BuildEvent(l *models.Lead) (EventSpec, error) {
	if l.AppointmentDate == nil {
		return EventSpec{}, fmt.Errorf("lead %d has no appointment date", l.ID)
	}
	start := l.AppointmentDate.In(timeutil.London)

	var d strings.Builder
	fmt.Fprintf(&d, "Lead: %s\n", l.LeadNumber)
	fmt.Fprintf(&d, "Phone: %s\n", l.Phone)
	if l.Email != "" {
		fmt.Fprintf(&d, "Email: %s\n", l.Email)
	}
	fmt.Fprintf(&d, "Agent: %s\n", l.AgentName)
	if l.SalesRepName != "" {
		fmt.Fprintf(&d, "Sales Rep: %s\n", l.SalesRepName)
	}
	if addr := l.Address(); addr != "" {
		fmt.Fprintf(&d, "Address: %s, %s %s\n", addr, l.City, l.PostalCode)
	}
	if l.Notes != "" {
		fmt.Fprintf(&d, "\nNotes:\n%s\n", l.Notes)
	}

	spec := EventSpec{
		Summary:     "Appointment with " + l.DisplayName(),
		Description: strings.TrimRight(d.String(), "\n"),
		Location:    strings.Trim(strings.Join([]string{l.Address(), l.City, l.PostalCode}, ", "), ", "),
		Start:       start,
		End:         start.Add(AppointmentLength),
		TimeZone:    timeutil.LondonTZ,
		Reminders:   DefaultReminders,
	}
	if l.Email != "" {
		spec.Attendees = []string{l.Email}
	}
	return spec, nil
}
