package dom_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/webeye/internal/dom"
	"github.com/polzovatel/webeye/internal/dom/domtest"
	"github.com/polzovatel/webeye/internal/snapshot"
)

func TestLocate(t *testing.T) {
	ctx := context.Background()

	t.Run("SingleCheckbox", func(t *testing.T) {
		s, page := checkboxPage(1)
		el, err := newIndex(s, page).Locate(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "input", el.TagName())

		isCheckbox, err := el.IsCheckbox(ctx)
		require.NoError(t, err)
		assert.True(t, isCheckbox)

		isRadio, err := el.IsRadio(ctx)
		require.NoError(t, err)
		assert.False(t, isRadio)
	})

	t.Run("NoMatch", func(t *testing.T) {
		s, page := checkboxPage(0)
		_, err := newIndex(s, page).Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrElementNotFound)

		var me *dom.MatchError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "#box", me.Selector)
		assert.Equal(t, "e1", me.ElementID)
	})

	t.Run("Ambiguous", func(t *testing.T) {
		s, page := checkboxPage(2)
		_, err := newIndex(s, page).Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrAmbiguousElement)

		var me *dom.MatchError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, 2, me.Count)
		assert.Equal(t, "#box", me.Selector)
	})

	t.Run("MissingMetadataMakesNoLiveCall", func(t *testing.T) {
		s, page := checkboxPage(1)
		_, err := newIndex(s, page).Locate(ctx, "nope")
		require.ErrorIs(t, err, dom.ErrMissingMetadata)

		var le *dom.LookupError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, "nope", le.ElementID)
		assert.Empty(t, page.Events())
	})

	t.Run("MissingFrameMapping", func(t *testing.T) {
		s, page := checkboxPage(1)
		delete(s.IDToFrame, "e1")
		_, err := newIndex(s, page).Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrMissingFrameMapping)
		assert.Empty(t, page.Events())
	})

	t.Run("MissingSelector", func(t *testing.T) {
		s, page := checkboxPage(1)
		delete(s.IDToCSS, "e1")
		_, err := newIndex(s, page).Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrMissingSelector)
		assert.Empty(t, page.Events())
	})

	t.Run("UnresolvedFrameBeforeLiveQuery", func(t *testing.T) {
		s, page := checkboxPage(1)
		s.IDToFrame["e1"] = "ghost"
		_, err := newIndex(s, page).Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrUnresolvedFrame)

		var fe *dom.FrameError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "ghost", fe.FrameID)
		assert.Empty(t, page.Events())
	})

	t.Run("Idempotent", func(t *testing.T) {
		s, page := checkboxPage(1)
		idx := newIndex(s, page)
		first, err := idx.Locate(ctx, "e1")
		require.NoError(t, err)
		second, err := idx.Locate(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, first.Static(), second.Static())
		assert.Equal(t, first.TagName(), second.TagName())
	})

	t.Run("RemovedSinceLastLocate", func(t *testing.T) {
		s, page := checkboxPage(1)
		idx := newIndex(s, page)
		_, err := idx.Locate(ctx, "e1")
		require.NoError(t, err)
		page.Root().Remove("#box")
		_, err = idx.Locate(ctx, "e1")
		require.ErrorIs(t, err, dom.ErrElementNotFound)
	})

	t.Run("ConcurrentLocates", func(t *testing.T) {
		s, page := checkboxPage(1)
		idx := newIndex(s, page)
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = idx.Locate(ctx, "e1")
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s, page := checkboxPage(1)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newIndex(s, page).Locate(cctx, "e1")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocateInNestedFrames(t *testing.T) {
	ctx := context.Background()

	build := func() (*snapshot.Snapshot, *domtest.Page, *domtest.Doc) {
		s := snapshot.New("")
		addElement(s, "mid", "iframe", snapshot.MainFrame, frameSel("mid"), nil)
		addElement(s, "leaf", "iframe", "mid", frameSel("leaf"), nil)
		addElement(s, "btn", "button", "leaf", "#go", map[string]string{"class": "primary"})

		page := domtest.NewPage()
		mid := page.Root().AddFrame(frameSel("mid"), "mid")
		leaf := mid.AddFrame(frameSel("leaf"), "leaf")
		leaf.Add("#go", map[string]string{"class": "primary"})
		return s, page, leaf
	}

	t.Run("DescendsRootFirst", func(t *testing.T) {
		s, page, leaf := build()
		el, err := newIndex(s, page).Locate(ctx, "btn")
		require.NoError(t, err)
		assert.Equal(t, "button", el.TagName())
		assert.Same(t, leaf, el.Frame())
		assert.Equal(t, []string{
			"query main " + frameSel("mid"),
			"query mid " + frameSel("leaf"),
			"count leaf #go",
		}, page.Events())
	})

	t.Run("LocatorScopedToFrame", func(t *testing.T) {
		s, page, _ := build()
		page.Root().Add("#go", nil)
		el, err := newIndex(s, page).Locate(ctx, "btn")
		require.NoError(t, err)
		require.NoError(t, el.Click(ctx, 0))
		assert.Contains(t, page.Events(), "click leaf #go")
	})

	t.Run("DetachedFrame", func(t *testing.T) {
		s, page, _ := build()
		page.Root().AddDetachedFrame(frameSel("mid"))
		_, err := newIndex(s, page).Locate(ctx, "btn")
		require.ErrorIs(t, err, dom.ErrFrameNotAttached)

		var fe *dom.FrameError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "mid", fe.FrameID)
	})

	t.Run("IframeElementGone", func(t *testing.T) {
		s, _, _ := build()
		page := domtest.NewPage()
		page.Root().AddFrame(frameSel("mid"), "mid")
		_, err := newIndex(s, page).Locate(ctx, "btn")
		require.ErrorIs(t, err, dom.ErrFrameNotAttached)

		var fe *dom.FrameError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "leaf", fe.FrameID)
	})

	t.Run("FrameWithoutParent", func(t *testing.T) {
		s, page, _ := build()
		mid := s.IDToElement["mid"]
		mid.Frame = ""
		s.IDToElement["mid"] = mid
		_, err := newIndex(s, page).Locate(ctx, "btn")
		require.ErrorIs(t, err, dom.ErrUnresolvedFrame)
		assert.Empty(t, page.Events())
	})

	t.Run("CycleIsUnresolved", func(t *testing.T) {
		s, page, _ := build()
		mid := s.IDToElement["mid"]
		mid.Frame = "leaf"
		s.IDToElement["mid"] = mid
		_, err := newIndex(s, page).Locate(ctx, "btn")
		require.ErrorIs(t, err, dom.ErrUnresolvedFrame)
		assert.Empty(t, page.Events())
	})
}
