package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"confcal/internal/ics"
	appLog "confcal/internal/log"
	"confcal/internal/model"
)

// Fetcher returns the current agenda page markup.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	CalendarName        string
	CalendarDescription string
	Policy              Policy
	// Now is used to stamp generated calendars. Defaults to time.Now.
	Now func() time.Time
}

// Service runs the fetch -> extract -> normalize -> serialize pipeline.
// It holds no mutable state and may be shared between requests.
type Service struct {
	fetcher    Fetcher
	normalizer *Normalizer
	opts       ServiceOptions
}

func NewService(fetcher Fetcher, normalizer *Normalizer, opts ServiceOptions) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher:    fetcher,
		normalizer: normalizer,
		opts:       opts,
	}
}

// Sessions fetches the agenda and returns its sessions in document order.
func (s *Service) Sessions(ctx context.Context) ([]model.Session, error) {
	sessions, _, err := s.load(ctx)
	return sessions, err
}

// Calendar fetches the agenda and renders it as an iCalendar document.
func (s *Service) Calendar(ctx context.Context) (string, error) {
	feed, err := s.Render(ctx)
	if err != nil {
		return "", err
	}
	return feed.Calendar, nil
}

// Feed is one rendering of the agenda: the sessions and their calendar text,
// both built from the same fetch.
type Feed struct {
	Sessions  []model.Session
	Calendar  string
	FetchedAt time.Time
}

// Render fetches the agenda once and returns both representations.
func (s *Service) Render(ctx context.Context) (Feed, error) {
	sessions, fetchedAt, err := s.load(ctx)
	if err != nil {
		return Feed{}, err
	}
	cal := ics.Serialize(sessions, ics.Options{
		Name:        s.opts.CalendarName,
		Description: s.opts.CalendarDescription,
		Stamp:       fetchedAt,
	})
	return Feed{Sessions: sessions, Calendar: cal, FetchedAt: fetchedAt}, nil
}

func (s *Service) load(ctx context.Context) ([]model.Session, time.Time, error) {
	page, err := s.fetcher.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return nil, time.Time{}, err
	}
	fetchedAt := s.opts.Now()

	root, err := ParseDocument(strings.NewReader(page))
	if err != nil {
		return nil, time.Time{}, err
	}
	shape := DetectShape(root)
	raws, err := Extract(root)
	if err != nil {
		return nil, time.Time{}, err
	}

	sessions := make([]model.Session, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		sess, err := s.normalizer.Normalize(raw)
		if err != nil {
			if s.opts.Policy != PolicySkip {
				return nil, time.Time{}, err
			}
			skipped++
			appLog.Warn("skipping malformed session", "err", err)
			continue
		}
		sessions = append(sessions, sess)
	}

	appLog.Info("agenda loaded",
		"shape", shape,
		"bytes", len(page),
		"sessions", len(sessions),
		"skipped", skipped,
		"policy", s.opts.Policy,
	)
	return sessions, fetchedAt, nil
}
