package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "confcal/internal/log"
	"confcal/internal/model"
)

// Event is a VEVENT read back from a feed produced by Serialize.
type Event struct {
	UID string
	model.Session
}

// Parse reads an agenda feed back into events, in document order.
//
//   - DTSTART/DTEND are returned in UTC.
//   - The description block written by Description is split back into
//     speakers and description; any other body is kept whole as the
//     description.
//   - Events without UID or with unreadable times fail the whole parse.
func Parse(r io.Reader) ([]Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]Event, 0, len(cal.Events()))
	for i, ve := range cal.Events() {
		ev, err := parseVEvent(ve)
		if err != nil {
			return nil, fmt.Errorf("vevent %d: %w", i, err)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (Event, error) {
	var out Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Speakers, out.Description = splitDescription(p.Value)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}
	out.Start = start.UTC()
	out.End = end.UTC()

	return out, nil
}

const (
	speakersHeader    = "Speaker(s):\n"
	descriptionHeader = "\n\nDescription:\n"
)

// splitDescription reverses Description.
func splitDescription(body string) (speakers, description string) {
	rest, ok := strings.CutPrefix(body, speakersHeader)
	if !ok {
		return "", body
	}
	speakers, description, ok = strings.Cut(rest, descriptionHeader)
	if !ok {
		return "", body
	}
	return speakers, description
}
