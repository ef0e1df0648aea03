package agenda

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Shape identifies which generation of agenda markup a page uses.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeLegacy pages carry a day header followed by groups of
	// (time span, spacer, detail) elements.
	ShapeLegacy
	// ShapeModern pages tag each session with data-sessionid and
	// data-start/data-end attributes.
	ShapeModern
)

func (s Shape) String() string {
	switch s {
	case ShapeLegacy:
		return "legacy"
	case ShapeModern:
		return "modern"
	default:
		return "unknown"
	}
}

// RawSession is one session as found in the markup, before any date or
// zone handling.
type RawSession struct {
	Shape Shape
	ID    string
	Bonus bool

	// Day is the tracked agenda day for legacy markup; Start and End are
	// then times of day. For modern markup Day is zero and Start and End
	// are full date-times.
	Day   time.Time
	Start string
	End   string

	StartZone string
	EndZone   string

	Title       string
	Speakers    string
	Description string
}

func (r RawSession) label() string {
	switch {
	case r.ID != "" && r.Bonus:
		return "bonus session " + r.ID
	case r.ID != "":
		return "session " + r.ID
	default:
		return "session " + strconv.Quote(strings.TrimSpace(r.Title))
	}
}

// DetectShape probes for the modern marker attributes first and falls back
// to the legacy container.
func DetectShape(root Node) Shape {
	for _, g := range modernGroups {
		if _, ok := root.First("[" + g.idAttr + "]"); ok {
			return ShapeModern
		}
	}
	if _, ok := root.First(".agenda-container"); ok {
		return ShapeLegacy
	}
	return ShapeUnknown
}

// Extract returns the raw sessions of the page in document order, regular
// sessions before bonus sessions.
func Extract(root Node) ([]RawSession, error) {
	switch DetectShape(root) {
	case ShapeModern:
		return extractModern(root), nil
	case ShapeLegacy:
		return extractLegacy(root), nil
	default:
		return nil, fmt.Errorf("%w: no agenda markup found", ErrParseFailed)
	}
}

type sessionGroup struct {
	bonus        bool
	idAttr       string
	startAttr    string
	endAttr      string
	detailPrefix string
}

var modernGroups = []sessionGroup{
	{idAttr: "data-sessionid", startAttr: "data-start", endAttr: "data-end", detailPrefix: "session-"},
	{bonus: true, idAttr: "data-bonussessionid", startAttr: "data-bonusstart", endAttr: "data-bonusend", detailPrefix: "bonus-session-"},
}

func extractModern(root Node) []RawSession {
	var out []RawSession
	for _, g := range modernGroups {
		seen := make(map[string]bool)
		for _, title := range root.Find("[" + g.idAttr + "]") {
			id, _ := title.Attr(g.idAttr)
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			stamped := title
			if _, ok := title.Attr(g.startAttr); !ok {
				n, found := title.First("[" + g.startAttr + "]")
				if !found {
					continue
				}
				stamped = n
			}
			startVal, _ := stamped.Attr(g.startAttr)
			endVal, _ := stamped.Attr(g.endAttr)
			if strings.TrimSpace(startVal) == "" || strings.TrimSpace(endVal) == "" {
				continue
			}

			raw := RawSession{Shape: ShapeModern, ID: id, Bonus: g.bonus}
			raw.Start, raw.StartZone = splitZone(startVal)
			raw.End, raw.EndZone = splitZone(endVal)

			detail, _ := root.First("#" + g.detailPrefix + id)
			raw.Title, raw.Speakers, raw.Description = detailFields(detail)
			out = append(out, raw)
		}
	}
	return out
}

func extractLegacy(root Node) []RawSession {
	container, ok := root.First(".agenda-container")
	if !ok {
		return nil
	}

	var (
		out []RawSession
		day time.Time
	)
	for _, section := range container.Children() {
		if !section.HasClass("agenda-group") {
			if p, ok := section.First("p"); ok {
				if d, ok := parseDay(p.Text()); ok {
					day = d
				}
			}
			continue
		}

		children := section.Children()
		for i := 0; i < len(children); i += 3 {
			span, ok := children[i].First("span")
			if !ok {
				continue
			}
			schedule := collapse(span.Text())
			if schedule == "" {
				continue
			}

			raw := RawSession{Shape: ShapeLegacy, Day: day}
			raw.Start, raw.End, raw.StartZone = splitSchedule(schedule)
			raw.EndZone = raw.StartZone
			if i+2 < len(children) {
				raw.Title, raw.Speakers, raw.Description = detailFields(children[i+2])
			}
			out = append(out, raw)
		}
	}
	return out
}

// detailFields reads title, speakers and description from a detail node.
// A nil node yields empty strings.
func detailFields(n Node) (title, speakers, description string) {
	if n == nil {
		return "", "", ""
	}
	if t, ok := n.First(".agenda-title"); ok {
		title = t.Text()
	}
	var names []string
	for _, s := range n.Find(".agenda-speaker-name") {
		if name := collapse(s.Text()); name != "" {
			names = append(names, name)
		}
	}
	speakers = strings.Join(names, ", ")
	if d, ok := n.First(".agenda-description"); ok {
		description = d.Text()
	}
	return title, speakers, description
}

var (
	zoneToken     = regexp.MustCompile(`^[A-Z]{2,6}$`)
	scheduleSplit = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(.+)$`)
)

// splitZone separates "<datetime> <ZONE>" into its parts. Text without a
// trailing all-caps token is returned with an empty zone.
func splitZone(s string) (text, zone string) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return strings.Join(fields, " "), ""
	}
	last := fields[len(fields)-1]
	if !zoneToken.MatchString(last) || last == "AM" || last == "PM" {
		return strings.Join(fields, " "), ""
	}
	return strings.Join(fields[:len(fields)-1], " "), last
}

// splitSchedule splits "07:45 AM - 08:30 AM PST". An unsplittable span is
// returned whole as start so that normalization reports it.
func splitSchedule(s string) (start, end, zone string) {
	m := scheduleSplit.FindStringSubmatch(s)
	if m == nil {
		return s, "", ""
	}
	end, zone = splitZone(m[2])
	return strings.TrimSpace(m[1]), end, zone
}

var dayLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"January 2 2006",
	"2006-01-02",
	"1/2/2006",
}

func parseDay(s string) (time.Time, bool) {
	s = collapse(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
