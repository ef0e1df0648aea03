package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"confcal/internal/model"
)

const defaultProductID = "-//confcal//Conference Agenda//EN"

// uidNamespace scopes the name-based UIDs generated from session titles.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("confcal:session"))

// Options controls calendar-level properties.
type Options struct {
	Name        string
	Description string
	// ProductID defaults to defaultProductID.
	ProductID string
	// Stamp is written as DTSTAMP on every event. A zero Stamp omits it,
	// which makes the output a pure function of the sessions.
	Stamp time.Time
}

// UID derives the event identifier from the session title alone, so that
// calendar clients see a refetched feed as updates rather than new events.
func UID(title string) string {
	return uuid.NewSHA1(uidNamespace, []byte(title)).String()
}

// Description formats the event body shown by calendar clients.
func Description(s model.Session) string {
	return speakersHeader + s.Speakers + descriptionHeader + s.Description
}

// Serialize renders sessions as an iCalendar document, one VEVENT per
// session in the given order. Lines end in CRLF and long lines are folded.
func Serialize(sessions []model.Session, opts Options) string {
	productID := opts.ProductID
	if productID == "" {
		productID = defaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Description != "" {
		cal.SetXWRCalDesc(opts.Description)
	}

	for _, s := range sessions {
		event := cal.AddEvent(UID(s.Title))
		if !opts.Stamp.IsZero() {
			event.SetDtStampTime(opts.Stamp)
		}
		event.SetStartAt(s.Start)
		event.SetEndAt(s.End)
		event.SetSummary(s.Title)
		event.SetDescription(Description(s))
	}

	return cal.Serialize(ical.WithNewLineWindows)
}
