package dom

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/polzovatel/webeye/internal/snapshot"
)

// Resolver turns a snapshot frame id into live handles, re-descending from
// the root page on every call.
type Resolver struct {
	idAttr string
	logger zerolog.Logger
}

func NewResolver(idAttr string, logger zerolog.Logger) *Resolver {
	if idAttr == "" {
		idAttr = snapshot.DefaultIDAttr
	}
	return &Resolver{idAttr: idAttr, logger: logger}
}

// Resolve returns a locator for css inside the frame identified by frameID
// together with that frame's live handle. frameID is itself the frame to
// enter, not an element inside it.
func (r *Resolver) Resolve(ctx context.Context, snap *snapshot.Snapshot, page Page, frameID, css string) (Locator, Frame, error) {
	path, err := r.framePath(snap, frameID)
	if err != nil {
		return nil, nil, err
	}

	var scope Scope = page
	frame := page.MainFrame()
	for len(path) > 0 {
		child := path[len(path)-1]
		path = path[:len(path)-1]

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		sel := snapshot.Selector(r.idAttr, child)
		handle, err := frame.QuerySelector(sel)
		if err != nil {
			return nil, nil, &FrameError{Kind: ErrFrameNotAttached, FrameID: child, Reason: "iframe query failed", Err: wrap(err)}
		}
		if handle == nil {
			return nil, nil, &FrameError{Kind: ErrFrameNotAttached, FrameID: child, Reason: "iframe element not in page"}
		}
		content, err := handle.ContentFrame()
		if err != nil {
			return nil, nil, &FrameError{Kind: ErrFrameNotAttached, FrameID: child, Err: wrap(err)}
		}
		if content == nil {
			return nil, nil, &FrameError{Kind: ErrFrameNotAttached, FrameID: child, Reason: "no content frame"}
		}
		frame = content
		scope = scope.FrameLocator(sel)
	}
	return scope.Locator(css), frame, nil
}

// framePath follows parent pointers from frameID up to the main frame and
// returns the frame ids leaf first; the caller pops from the end to descend
// root first. No live query is made here.
func (r *Resolver) framePath(snap *snapshot.Snapshot, frameID string) ([]string, error) {
	var path []string
	seen := map[string]bool{}
	for frameID != snapshot.MainFrame {
		if seen[frameID] {
			return nil, &FrameError{Kind: ErrUnresolvedFrame, FrameID: frameID, Reason: "frame chain has a cycle"}
		}
		seen[frameID] = true
		path = append(path, frameID)

		el, ok := snap.Element(frameID)
		if !ok {
			return nil, &FrameError{Kind: ErrUnresolvedFrame, FrameID: frameID, Reason: "no metadata for frame"}
		}
		if el.Frame == "" {
			return nil, &FrameError{Kind: ErrUnresolvedFrame, FrameID: frameID, Reason: "frame element has no parent frame"}
		}
		r.logger.Debug().Str("frame", frameID).Str("parent", el.Frame).Msg("child frame")
		frameID = el.Frame
	}
	return path, nil
}
