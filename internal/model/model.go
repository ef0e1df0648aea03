package model

import "time"

// Session is one scheduled talk on the agenda after time-zone resolution.
// Start and End are always in UTC and End is strictly after Start.
type Session struct {
	// ID is the session identifier from the page markup, if the markup
	// carries one. Legacy agenda pages do not.
	ID string `json:"id,omitempty"`

	// Bonus marks sessions taken from the bonus group of the agenda.
	Bonus bool `json:"bonus,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Title       string `json:"title"`
	Speakers    string `json:"speakers"`
	Description string `json:"description"`
}

// Duration returns the scheduled length of the session.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
