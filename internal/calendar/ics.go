package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const productID = "-//leads-backend//appointments//EN"

// Invite renders spec as a METHOD:REQUEST calendar with one alarm per
// reminder offset.
func Invite(spec EventSpec, uid, organizer string, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(productID)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(now)
	ev.SetCreatedTime(now)
	ev.SetStartAt(spec.Start)
	ev.SetEndAt(spec.End)
	ev.SetSummary(spec.Summary)
	ev.SetDescription(spec.Description)
	if spec.Location != "" {
		ev.SetLocation(spec.Location)
	}
	if organizer != "" {
		ev.SetOrganizer("mailto:" + organizer)
	}
	for _, a := range spec.Attendees {
		ev.AddAttendee("mailto:"+a,
			ics.CalendarUserTypeIndividual,
			ics.ParticipationStatusNeedsAction,
			ics.ParticipationRoleReqParticipant,
			ics.WithRSVP(true))
	}
	for _, r := range spec.Reminders {
		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(triggerBefore(r))
		alarm.SetProperty(ics.ComponentPropertyDescription, spec.Summary)
	}
	return cal.Serialize()
}

// triggerBefore renders an RFC 5545 negative duration, e.g. -PT24H
func triggerBefore(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("-PT%dH", int(d/time.Hour))
	}
	return fmt.Sprintf("-PT%dM", int(d/time.Minute))
}
