// Package tzabbr resolves human-readable time-zone abbreviations such as
// "PST" or "CEST" to IANA zone identifiers.
//
// Go ships no CLDR display names, so abbreviations are read from the tz
// database itself: every known zone is sampled in mid-January and mid-July
// of a reference year and the abbreviations in effect are recorded. A short
// table adds the US-English generic forms ("PT", "ET", ...). When several
// zones share an abbreviation the lexicographically earliest zone identifier
// wins, which keeps the map stable for a given zone database.
package tzabbr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	// Embedded zone data so LoadLocation works in minimal containers.
	_ "time/tzdata"

	appLog "confcal/internal/log"
)

// ErrTimeZoneNotFound is returned when neither an abbreviation nor the raw
// text names a loadable time zone.
var ErrTimeZoneNotFound = errors.New("time zone not found")

var abbrPattern = regexp.MustCompile(`^[A-Z][A-Za-z]{1,5}$`)

// genericNames holds the US-English generic ("wall time") abbreviations,
// which the tz database does not carry.
var genericNames = map[string]string{
	"America/Anchorage":   "AKT",
	"America/Chicago":     "CT",
	"America/Denver":      "MT",
	"America/Halifax":     "AT",
	"America/Los_Angeles": "PT",
	"America/New_York":    "ET",
}

// Resolver is an immutable abbreviation -> zone identifier map. It is safe
// for concurrent use.
type Resolver struct {
	byAbbr map[string]string
}

type buildOptions struct {
	zones     []string
	roots     []string
	reference time.Time
}

// Option customizes Build.
type Option func(*buildOptions)

// WithZones restricts enumeration to the given zone identifiers instead of
// walking the system zoneinfo tree.
func WithZones(ids ...string) Option {
	return func(o *buildOptions) {
		o.zones = append([]string(nil), ids...)
	}
}

// WithZoneinfoRoots overrides the directories searched for zone files.
func WithZoneinfoRoots(roots ...string) Option {
	return func(o *buildOptions) {
		o.roots = append([]string(nil), roots...)
	}
}

// WithReference sets the instant whose year is sampled for abbreviations.
func WithReference(t time.Time) Option {
	return func(o *buildOptions) {
		o.reference = t
	}
}

type pair struct {
	abbr string
	zone string
}

// Build enumerates zones and constructs the abbreviation map. It is meant to
// run once at startup.
func Build(opts ...Option) *Resolver {
	o := buildOptions{
		roots:     defaultRoots(),
		reference: time.Now(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	zones := o.zones
	if zones == nil {
		zones = enumerateZones(o.roots)
		if len(zones) == 0 {
			appLog.Warn("no zoneinfo tree found; using built-in zone list", "roots", strings.Join(o.roots, ","))
			zones = fallbackZones
		}
	}

	pairs := make([]pair, 0, len(zones)*3)
	year := o.reference.Year()
	for _, id := range zones {
		loc, err := time.LoadLocation(id)
		if err != nil {
			appLog.Debug("skipping unloadable zone", "zone", id, "err", err)
			continue
		}
		for _, month := range []time.Month{time.January, time.July} {
			name, _ := time.Date(year, month, 15, 12, 0, 0, 0, time.UTC).In(loc).Zone()
			if abbrPattern.MatchString(name) {
				pairs = append(pairs, pair{abbr: name, zone: id})
			}
		}
		if g, ok := genericNames[id]; ok {
			pairs = append(pairs, pair{abbr: g, zone: id})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].abbr != pairs[j].abbr {
			return pairs[i].abbr < pairs[j].abbr
		}
		return pairs[i].zone < pairs[j].zone
	})

	byAbbr := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if _, seen := byAbbr[p.abbr]; !seen {
			byAbbr[p.abbr] = p.zone
		}
	}

	appLog.Info("time zone abbreviations loaded", "zones", len(zones), "abbreviations", len(byAbbr))
	return &Resolver{byAbbr: byAbbr}
}

// Len reports the number of known abbreviations.
func (r *Resolver) Len() int {
	return len(r.byAbbr)
}

// Lookup returns the zone identifier mapped to abbr.
func (r *Resolver) Lookup(abbr string) (string, bool) {
	id, ok := r.byAbbr[abbr]
	return id, ok
}

// Resolve maps an abbreviation to its zone identifier. Input that is not a
// known abbreviation is returned unchanged so that callers can try it as a
// zone identifier directly.
func (r *Resolver) Resolve(abbrOrID string) string {
	if id, ok := r.byAbbr[abbrOrID]; ok {
		return id
	}
	return abbrOrID
}

// Location resolves abbrOrID and loads the zone.
func (r *Resolver) Location(abbrOrID string) (*time.Location, error) {
	id := r.Resolve(strings.TrimSpace(abbrOrID))
	// LoadLocation maps "" to UTC and "Local" to the host zone; neither is
	// a meaningful answer for agenda text.
	if id == "" || id == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrTimeZoneNotFound, abbrOrID)
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrTimeZoneNotFound, abbrOrID)
	}
	return loc, nil
}

func defaultRoots() []string {
	roots := make([]string, 0, 4)
	if z := os.Getenv("ZONEINFO"); z != "" {
		roots = append(roots, z)
	}
	return append(roots, "/usr/share/zoneinfo", "/usr/share/lib/zoneinfo", "/usr/lib/locale/TZ")
}

// enumerateZones walks the first existing zoneinfo root and returns zone
// identifiers in sorted order.
func enumerateZones(roots []string) []string {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}

		var zones []string
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, rerr := filepath.Rel(root, path)
			if rerr != nil || rel == "." {
				return nil
			}
			if d.IsDir() {
				// posix/ and right/ duplicate the main tree.
				if rel == "posix" || rel == "right" || !isZoneName(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if isZoneName(d.Name()) {
				zones = append(zones, filepath.ToSlash(rel))
			}
			return nil
		})

		if len(zones) > 0 {
			sort.Strings(zones)
			return zones
		}
	}
	return nil
}

// isZoneName filters out tzdata metadata files (zone.tab, leapseconds, ...).
func isZoneName(name string) bool {
	if name == "" || strings.Contains(name, ".") {
		return false
	}
	c := name[0]
	return c >= 'A' && c <= 'Z' && name != "Factory" && name != "SECURITY"
}

var fallbackZones = []string{
	"Africa/Cairo", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Anchorage", "America/Argentina/Buenos_Aires", "America/Bogota",
	"America/Chicago", "America/Denver", "America/Halifax", "America/Lima",
	"America/Los_Angeles", "America/Mexico_City", "America/New_York",
	"America/Phoenix", "America/Santiago", "America/Sao_Paulo", "America/St_Johns",
	"America/Toronto", "America/Vancouver",
	"Asia/Bangkok", "Asia/Dhaka", "Asia/Dubai", "Asia/Hong_Kong", "Asia/Jakarta",
	"Asia/Jerusalem", "Asia/Karachi", "Asia/Kathmandu", "Asia/Kolkata",
	"Asia/Manila", "Asia/Seoul", "Asia/Shanghai", "Asia/Singapore", "Asia/Taipei",
	"Asia/Tehran", "Asia/Tokyo",
	"Atlantic/Azores", "Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Darwin",
	"Australia/Perth", "Australia/Sydney",
	"EST", "Etc/UTC",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Dublin",
	"Europe/Helsinki", "Europe/Istanbul", "Europe/Lisbon", "Europe/London",
	"Europe/Madrid", "Europe/Moscow", "Europe/Paris", "Europe/Rome",
	"Europe/Warsaw", "Europe/Zurich",
	"MST", "HST",
	"Pacific/Auckland", "Pacific/Guam", "Pacific/Honolulu",
	"UTC",
}
