package dom

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/polzovatel/webeye/internal/snapshot"
)

// Index hands out live elements for the ids of one snapshot.
type Index struct {
	snap     *snapshot.Snapshot
	page     Page
	resolver *Resolver
	cfg      Config
	logger   zerolog.Logger
}

func NewIndex(snap *snapshot.Snapshot, page Page, cfg Config, logger zerolog.Logger) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		snap:     snap,
		page:     page,
		resolver: NewResolver(cfg.IDAttr, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

func (i *Index) Snapshot() *snapshot.Snapshot { return i.snap }

// Locate resolves id to exactly one live element. Zero or several live
// matches are errors; the first of several is never picked.
func (i *Index) Locate(ctx context.Context, id string) (*Element, error) {
	static, ok := i.snap.IDToElement[id]
	if !ok {
		return nil, &LookupError{Kind: ErrMissingMetadata, ElementID: id}
	}
	frameID := i.snap.IDToFrame[id]
	if frameID == "" {
		return nil, &LookupError{Kind: ErrMissingFrameMapping, ElementID: id}
	}
	css := i.snap.IDToCSS[id]
	if css == "" {
		return nil, &LookupError{Kind: ErrMissingSelector, ElementID: id}
	}

	locator, frame, err := i.resolver.Resolve(ctx, i.snap, i.page, frameID, css)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := locator.Count()
	if err != nil {
		return nil, wrap(err)
	}
	switch {
	case n < 1:
		i.logger.Warn().Str("selector", css).Str("element_id", id).Msg("no elements found with css, validation failed")
		return nil, &MatchError{Kind: ErrElementNotFound, ElementID: id, Selector: css}
	case n > 1:
		i.logger.Warn().Int("num_elements", n).Str("selector", css).Str("element_id", id).
			Msg("multiple elements found with css, expected 1, validation failed")
		return nil, &MatchError{Kind: ErrAmbiguousElement, ElementID: id, Selector: css, Count: n}
	}
	return newElement(locator, frame, static, i.cfg), nil
}
