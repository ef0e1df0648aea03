package agenda

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"confcal/internal/model"
	"confcal/internal/tzabbr"
)

var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"15:04",
	"3 PM",
	"3PM",
}

var dateTimeLayouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
	"Monday, January 2, 2006 3:04 PM",
}

// Normalizer turns raw markup tuples into UTC sessions.
type Normalizer struct {
	zones *tzabbr.Resolver
}

func NewNormalizer(zones *tzabbr.Resolver) *Normalizer {
	return &Normalizer{zones: zones}
}

// Normalize parses the time span of raw, resolves its zone and converts the
// wall-clock times to UTC. Every failure wraps ErrMalformedSession; zone
// failures also wrap ErrTimeZoneNotFound.
func (n *Normalizer) Normalize(raw RawSession) (model.Session, error) {
	var (
		start, end time.Time
		err        error
	)
	if raw.Shape == ShapeLegacy {
		start, end, err = n.legacySpan(raw)
	} else {
		start, end, err = n.modernSpan(raw)
	}
	if err != nil {
		return model.Session{}, malformed(raw, err)
	}
	if !end.After(start) {
		return model.Session{}, malformed(raw, fmt.Errorf("end %s is not after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}

	return model.Session{
		ID:          raw.ID,
		Bonus:       raw.Bonus,
		Start:       start,
		End:         end,
		Title:       collapse(raw.Title),
		Speakers:    collapse(raw.Speakers),
		Description: strings.TrimSpace(raw.Description),
	}, nil
}

// legacySpan combines times of day with the tracked day. An end time of day
// earlier than the start rolls over to the following day.
func (n *Normalizer) legacySpan(raw RawSession) (time.Time, time.Time, error) {
	if raw.Day.IsZero() {
		return time.Time{}, time.Time{}, errors.New("no agenda day precedes the session")
	}
	st, err := parseLayouts(raw.Start, clockLayouts)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start time: %w", err)
	}
	et, err := parseLayouts(raw.End, clockLayouts)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end time: %w", err)
	}
	loc, err := n.zones.Location(raw.StartZone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, m, d := raw.Day.Date()
	endDay := d
	if minuteOfDay(et) < minuteOfDay(st) {
		endDay++
	}
	start := time.Date(y, m, d, st.Hour(), st.Minute(), 0, 0, loc)
	end := time.Date(y, m, endDay, et.Hour(), et.Minute(), 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

func (n *Normalizer) modernSpan(raw RawSession) (time.Time, time.Time, error) {
	start, err := n.wallClock(raw.Start, raw.StartZone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	endZone := raw.EndZone
	if endZone == "" {
		endZone = raw.StartZone
	}
	end, err := n.wallClock(raw.End, endZone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

// wallClock interprets a zone-less date-time as local time in zone.
func (n *Normalizer) wallClock(text, zone string) (time.Time, error) {
	naive, err := parseLayouts(text, dateTimeLayouts)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := n.zones.Location(zone)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := naive.Date()
	return time.Date(y, m, d, naive.Hour(), naive.Minute(), naive.Second(), 0, loc).UTC(), nil
}

// parseLayouts tries each layout in order. Input is upper-cased so that
// "am"/"pm" parse; month and weekday names match case-insensitively.
func parseLayouts(s string, layouts []string) (time.Time, error) {
	s = strings.ToUpper(collapse(s))
	if s == "" {
		return time.Time{}, errors.New("empty time text")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
