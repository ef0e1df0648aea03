package agenda

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is an in-memory Node supporting the simple selectors used by
// the extractor.
type fakeNode struct {
	tag   string
	attrs map[string]string
	text  string
	kids  []*fakeNode
}

func el(tag string, attrs map[string]string, kids ...*fakeNode) *fakeNode {
	return &fakeNode{tag: tag, attrs: attrs, kids: kids}
}

func txt(tag, class, text string) *fakeNode {
	return &fakeNode{tag: tag, attrs: map[string]string{"class": class}, text: text}
}

func (n *fakeNode) matches(sel string) bool {
	switch {
	case strings.HasPrefix(sel, "."):
		return n.HasClass(sel[1:])
	case strings.HasPrefix(sel, "#"):
		return n.attrs["id"] == sel[1:]
	case strings.HasPrefix(sel, "["):
		_, ok := n.attrs[strings.Trim(sel, "[]")]
		return ok
	default:
		return n.tag == sel
	}
}

func (n *fakeNode) Find(sel string) []Node {
	var out []Node
	var walk func(*fakeNode)
	walk = func(p *fakeNode) {
		for _, k := range p.kids {
			if k.matches(sel) {
				out = append(out, k)
			}
			walk(k)
		}
	}
	walk(n)
	return out
}

func (n *fakeNode) First(sel string) (Node, bool) {
	found := n.Find(sel)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

func (n *fakeNode) Children() []Node {
	out := make([]Node, 0, len(n.kids))
	for _, k := range n.kids {
		out = append(out, k)
	}
	return out
}

func (n *fakeNode) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

func (n *fakeNode) Text() string {
	var b strings.Builder
	b.WriteString(n.text)
	for _, k := range n.kids {
		b.WriteString(k.Text())
	}
	return b.String()
}

func (n *fakeNode) HasClass(name string) bool {
	for _, c := range strings.Fields(n.attrs["class"]) {
		if c == name {
			return true
		}
	}
	return false
}

func loadFixture(t *testing.T, name string) Node {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	root, err := ParseDocument(f)
	require.NoError(t, err)
	return root
}

func TestDetectShape(t *testing.T) {
	assert.Equal(t, ShapeLegacy, DetectShape(loadFixture(t, "legacy.html")))
	assert.Equal(t, ShapeModern, DetectShape(loadFixture(t, "modern.html")))

	root, err := ParseString("<html><body><p>No agenda yet</p></body></html>")
	require.NoError(t, err)
	assert.Equal(t, ShapeUnknown, DetectShape(root))

	_, err = Extract(root)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestDetectShape_BonusOnlyIsModern(t *testing.T) {
	root := el("body", nil, el("div", map[string]string{"data-bonussessionid": "9"}))
	assert.Equal(t, ShapeModern, DetectShape(root))
}

func TestExtract_Legacy(t *testing.T) {
	raws, err := Extract(loadFixture(t, "legacy.html"))
	require.NoError(t, err)
	require.Len(t, raws, 4)

	nov13 := time.Date(2024, 11, 13, 0, 0, 0, 0, time.UTC)
	nov14 := time.Date(2024, 11, 14, 0, 0, 0, 0, time.UTC)

	a := raws[0]
	assert.Equal(t, ShapeLegacy, a.Shape)
	assert.Equal(t, nov13, a.Day)
	assert.Equal(t, "07:45 AM", a.Start)
	assert.Equal(t, "08:30 AM", a.End)
	assert.Equal(t, "PST", a.StartZone)
	assert.Equal(t, "PST", a.EndZone)
	assert.Equal(t, "Session A", strings.TrimSpace(a.Title))
	assert.Equal(t, "Speakers A", a.Speakers)

	assert.Equal(t, nov13, raws[1].Day)
	assert.Equal(t, nov14, raws[2].Day)
	assert.Equal(t, "11:45 PM", raws[2].Start)
	assert.Equal(t, "12:15 AM", raws[2].End)

	// "Coming soon" is not a date; the previous day is kept.
	assert.Equal(t, nov14, raws[3].Day)
	assert.Equal(t, "Session D", raws[3].Title)
	assert.Empty(t, raws[3].Speakers)
	assert.Empty(t, raws[3].Description)
}

func TestExtract_Modern(t *testing.T) {
	raws, err := Extract(loadFixture(t, "modern.html"))
	require.NoError(t, err)
	require.Len(t, raws, 3)

	first := raws[0]
	assert.Equal(t, ShapeModern, first.Shape)
	assert.Equal(t, "1", first.ID)
	assert.False(t, first.Bonus)
	assert.Equal(t, "2024-11-13 07:45 AM", first.Start)
	assert.Equal(t, "EST", first.StartZone)
	assert.Equal(t, "2024-11-13 08:30 AM", first.End)
	assert.Equal(t, "EST", first.EndZone)
	assert.Equal(t, "Opening Keynote", first.Title)
	assert.Equal(t, "Ada Lovelace, Grace Hopper", first.Speakers)
	assert.Equal(t, "Welcome to the conference.", first.Description)

	// Stamps on the title element itself; no detail container.
	second := raws[1]
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, "2024-11-13 11:45 PM", second.Start)
	assert.Empty(t, second.Title)

	// Bonus sessions follow regular ones regardless of document position.
	bonus := raws[2]
	assert.True(t, bonus.Bonus)
	assert.Equal(t, "1", bonus.ID)
	assert.Equal(t, "2024-11-16 10:00 AM", bonus.Start)
	assert.Equal(t, "Bonus Workshop", bonus.Title)
	assert.Equal(t, "Linus", bonus.Speakers)
}

func TestExtract_LegacyFixtureTree(t *testing.T) {
	detail := el("div", map[string]string{"class": "agenda-detail"},
		txt("h3", "agenda-title", "Session A"),
		txt("p", "agenda-speaker-name", "Speakers A"),
		txt("p", "agenda-description", "Description A"),
	)
	root := el("body", nil,
		el("div", map[string]string{"class": "agenda-container"},
			el("div", map[string]string{"class": "agenda-day"}, txt("p", "", "November 13, 2024")),
			el("div", map[string]string{"class": "agenda-group"},
				el("div", nil, txt("span", "", "07:45 AM - 08:30 AM PST")),
				el("div", nil),
				detail,
				// Trailing chunk without spacer or detail.
				el("div", nil, txt("span", "", "09:00 AM - 09:30 AM PST")),
			),
		),
	)

	raws, err := Extract(root)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "Session A", raws[0].Title)
	assert.Equal(t, "Description A", raws[0].Description)
	assert.Equal(t, "09:00 AM", raws[1].Start)
	assert.Empty(t, raws[1].Title)
}

func TestExtract_ModernFixtureTreeDeduplicatesIDs(t *testing.T) {
	stamp := map[string]string{"data-sessionid": "7", "data-start": "2024-11-13 10:00 AM EST", "data-end": "2024-11-13 11:00 AM EST"}
	root := el("body", nil,
		el("div", stamp),
		el("div", stamp),
		el("div", map[string]string{"id": "session-7"}, txt("h3", "agenda-title", "Once")),
	)

	raws, err := Extract(root)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Once", raws[0].Title)
}

func TestSplitZone(t *testing.T) {
	tests := []struct {
		in, text, zone string
	}{
		{"2024-11-13 07:45 AM EST", "2024-11-13 07:45 AM", "EST"},
		{"  2024-11-13   07:45 AM   PDT ", "2024-11-13 07:45 AM", "PDT"},
		{"2024-11-13 07:45 AM", "2024-11-13 07:45 AM", ""},
		{"2024-11-13 07:45 Est", "2024-11-13 07:45 Est", ""},
		{"EST", "EST", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		text, zone := splitZone(tt.in)
		assert.Equal(t, tt.text, text, tt.in)
		assert.Equal(t, tt.zone, zone, tt.in)
	}
}

func TestSplitSchedule(t *testing.T) {
	tests := []struct {
		in, start, end, zone string
	}{
		{"07:45 AM - 08:30 AM PST", "07:45 AM", "08:30 AM", "PST"},
		{"13:00 – 13:30 CET", "13:00", "13:30", "CET"},
		{"07:45 AM-08:30 AM", "07:45 AM", "08:30 AM", ""},
		{"TBD", "TBD", "", ""},
	}
	for _, tt := range tests {
		start, end, zone := splitSchedule(tt.in)
		assert.Equal(t, tt.start, start, tt.in)
		assert.Equal(t, tt.end, end, tt.in)
		assert.Equal(t, tt.zone, zone, tt.in)
	}
}

func TestParseDay(t *testing.T) {
	want := time.Date(2024, 11, 13, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"November 13, 2024", "Nov 13, 2024", "Wednesday, November 13, 2024", " 2024-11-13 ", "11/13/2024"} {
		got, ok := parseDay(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := parseDay("Day 1")
	assert.False(t, ok)
}
