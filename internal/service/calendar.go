package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"praxihub/backend/internal/model"
)

// ErrCalendarDates the record has no ISO start/end date to export
var ErrCalendarDates = errors.New("internship dates are not in YYYY-MM-DD format")

const calendarProductID = "-//PraxiHub//Internships//EN"

// Calendar renders the internship period as an all-day iCalendar event
func (s *internshipService) Calendar(ctx context.Context, caller Caller, id string) ([]byte, string, error) {
	rec, err := s.visibleRecord(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	body, err := BuildInternshipCalendar(rec, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("internship_%s.ics", rec.InternshipID)
	return body, filename, nil
}

// BuildInternshipCalendar one VEVENT spanning start_date..end_date inclusive
func BuildInternshipCalendar(rec *model.Internship, now time.Time) ([]byte, error) {
	start, err := time.Parse("2006-01-02", strings.TrimSpace(rec.StartDate))
	if err != nil {
		return nil, ErrCalendarDates
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(rec.EndDate))
	if err != nil {
		return nil, ErrCalendarDates
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrCalendarDates)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)

	event := cal.AddEvent(rec.InternshipID + "@praxihub")
	event.SetDtStampTime(now)
	event.SetCreatedTime(rec.CreatedAt)
	event.SetAllDayStartAt(start)
	// DTEND of an all-day event is exclusive
	event.SetAllDayEndAt(end.AddDate(0, 0, 1))

	summary := "Internship"
	if rec.OrganizationName != "" {
		summary = "Internship: " + rec.OrganizationName
	}
	event.SetSummary(summary)

	var desc []string
	if rec.Position != "" {
		desc = append(desc, "Position: "+rec.Position)
	}
	if rec.OrganizationICO != "" {
		desc = append(desc, "ICO: "+rec.OrganizationICO)
	}
	desc = append(desc, "Status: "+string(rec.Status))
	event.SetDescription(strings.Join(desc, "\n"))
	if rec.OrganizationWeb != "" {
		event.SetURL(rec.OrganizationWeb)
	}

	return []byte(cal.Serialize()), nil
}
