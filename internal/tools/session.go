package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/polzovatel/webeye/internal/dom"
	"github.com/polzovatel/webeye/internal/snapshot"
)

// ScrapeFunc captures a new snapshot of the live page.
type ScrapeFunc func(ctx context.Context) (*snapshot.Snapshot, error)

// Session tracks the snapshot that element ids currently refer to.
type Session struct {
	page   dom.Page
	scrape ScrapeFunc
	cfg    dom.Config
	logger zerolog.Logger

	mu    sync.Mutex
	index *dom.Index
}

func NewSession(page dom.Page, scrape ScrapeFunc, cfg dom.Config, logger zerolog.Logger) *Session {
	return &Session{page: page, scrape: scrape, cfg: cfg, logger: logger}
}

// Use replaces the current snapshot.
func (s *Session) Use(snap *snapshot.Snapshot) {
	idx := dom.NewIndex(snap, s.page, s.cfg, s.logger.With().Str("comp", "dom").Logger())
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

// Rescrape takes a fresh snapshot and makes it current.
func (s *Session) Rescrape(ctx context.Context) (*snapshot.Snapshot, error) {
	if s.scrape == nil {
		return nil, fmt.Errorf("scraping unavailable")
	}
	snap, err := s.scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	s.Use(snap)
	return snap, nil
}

func (s *Session) current() (*dom.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil, fmt.Errorf("no snapshot yet, navigate or rescrape first")
	}
	return s.index, nil
}

// Snapshot returns the current snapshot, or nil before the first one.
func (s *Session) Snapshot() *snapshot.Snapshot {
	idx, err := s.current()
	if err != nil {
		return nil
	}
	return idx.Snapshot()
}

func (s *Session) Locate(ctx context.Context, id string) (*dom.Element, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.Locate(ctx, id)
}
