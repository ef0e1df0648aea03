package agenda

import (
	"errors"
	"fmt"
	"strings"

	"confcal/internal/tzabbr"
)

// Pipeline errors. Callers test for them with errors.Is.
var (
	// ErrFetchFailed means the agenda page could not be retrieved.
	ErrFetchFailed = errors.New("agenda fetch failed")
	// ErrParseFailed means the page holds no navigable agenda markup.
	ErrParseFailed = errors.New("agenda parse failed")
	// ErrMalformedSession means a session's time span or zone could not be
	// resolved.
	ErrMalformedSession = errors.New("malformed session")
	// ErrTimeZoneNotFound means a zone abbreviation or identifier is unknown.
	ErrTimeZoneNotFound = tzabbr.ErrTimeZoneNotFound
)

// Policy decides what a malformed session does to the whole batch.
type Policy int

const (
	// PolicyFailFast aborts the batch on the first malformed session.
	PolicyFailFast Policy = iota
	// PolicySkip logs and drops malformed sessions.
	PolicySkip
)

func (p Policy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	default:
		return "fail-fast"
	}
}

// ParsePolicy accepts "fail-fast" (or empty) and "skip".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return PolicyFailFast, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyFailFast, fmt.Errorf("unknown session policy %q", s)
	}
}

func malformed(raw RawSession, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedSession, raw.label(), err)
}
