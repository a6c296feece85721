package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFrame answers the scrape script with fixed elements and renders a
// select2 panel while a select2 trigger is open.
type fakeFrame struct {
	owner    string
	elements []ElementMeta
	select2  []string
	evalErr  error
	clickErr error
	children []*fakeFrame

	panel  []Option
	open   bool
	starts []int
	log    []string
}

func (f *fakeFrame) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	switch expression {
	case scrapeScript:
		start := arg[0].(map[string]any)["start"].(int)
		f.starts = append(f.starts, start)
		if f.evalErr != nil {
			return nil, f.evalErr
		}
		data, _ := json.Marshal(map[string]any{
			"elements": f.elements,
			"next":     start + len(f.elements),
			"select2":  f.select2,
		})
		var out interface{}
		_ = json.Unmarshal(data, &out)
		return out, nil
	case select2OptionsScript:
		f.log = append(f.log, fmt.Sprintf("read %v", arg[0]))
		if !f.open {
			return []interface{}{}, nil
		}
		data, _ := json.Marshal(f.panel)
		var out interface{}
		_ = json.Unmarshal(data, &out)
		return out, nil
	}
	return nil, errors.New("unexpected script")
}

func (f *fakeFrame) ChildFrames() []Frame {
	out := make([]Frame, 0, len(f.children))
	for _, c := range f.children {
		out = append(out, c)
	}
	return out
}

func (f *fakeFrame) OwnerAttr(string) (string, error) { return f.owner, nil }

func (f *fakeFrame) Click(selector string, _ time.Duration) error {
	f.log = append(f.log, "click "+selector)
	if f.clickErr != nil {
		return f.clickErr
	}
	f.open = true
	return nil
}

func (f *fakeFrame) Press(selector, key string, _ time.Duration) error {
	f.log = append(f.log, "press "+key+" "+selector)
	f.open = false
	return nil
}

func (f *fakeFrame) Handle(selector string, _ time.Duration) (interface{}, error) {
	return "handle " + selector, nil
}

func TestScrapeFrame(t *testing.T) {
	ctx := context.Background()

	t.Run("CounterCarriesAcrossFramesAndScrapes", func(t *testing.T) {
		child := &fakeFrame{owner: "0", elements: []ElementMeta{{ID: "1", TagName: "button"}}}
		main := &fakeFrame{
			elements: []ElementMeta{{ID: "0", TagName: "iframe"}},
			children: []*fakeFrame{child},
		}
		sc := NewScraper("", zerolog.Nop())
		snap, err := sc.ScrapeFrame(ctx, "http://example.test", main)
		require.NoError(t, err)
		assert.Equal(t, "0", snap.IDToFrame["1"])
		assert.Equal(t, MainFrame, snap.IDToFrame["0"])
		assert.Equal(t, "[unique_id='1']", snap.IDToCSS["1"])
		assert.Equal(t, []int{1}, child.starts)

		_, err = sc.ScrapeFrame(ctx, "http://example.test", main)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, main.starts)
	})

	t.Run("SkipsChildWithoutRecordedIframe", func(t *testing.T) {
		unstamped := &fakeFrame{}
		foreign := &fakeFrame{owner: "99"}
		main := &fakeFrame{
			elements: []ElementMeta{{ID: "0", TagName: "button"}},
			children: []*fakeFrame{unstamped, foreign},
		}
		snap, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", main)
		require.NoError(t, err)
		assert.Len(t, snap.IDToElement, 1)
		assert.Empty(t, unstamped.starts)
		assert.Empty(t, foreign.starts)
	})

	t.Run("MainFrameErrorFails", func(t *testing.T) {
		main := &fakeFrame{evalErr: errors.New("target closed")}
		_, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", main)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "playwright: target closed")
	})

	t.Run("ChildFrameErrorIsSkipped", func(t *testing.T) {
		broken := &fakeFrame{owner: "0", evalErr: errors.New("cross origin")}
		sibling := &fakeFrame{owner: "1", elements: []ElementMeta{{ID: "2", TagName: "input"}}}
		main := &fakeFrame{
			elements: []ElementMeta{{ID: "0", TagName: "iframe"}, {ID: "1", TagName: "iframe"}},
			children: []*fakeFrame{broken, sibling},
		}
		snap, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", main)
		require.NoError(t, err)
		assert.Equal(t, "1", snap.IDToFrame["2"])
		assert.Equal(t, []int{2}, broken.starts)
		assert.Equal(t, []int{2}, sibling.starts)
	})

	t.Run("DepthCap", func(t *testing.T) {
		frames := make([]*fakeFrame, maxFrameDepth+4)
		for i := range frames {
			frames[i] = &fakeFrame{elements: []ElementMeta{{ID: fmt.Sprintf("f%d", i), TagName: "iframe"}}}
			if i > 0 {
				frames[i].owner = fmt.Sprintf("f%d", i-1)
				frames[i-1].children = []*fakeFrame{frames[i]}
			}
		}
		snap, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", frames[0])
		require.NoError(t, err)
		assert.Len(t, snap.IDToElement, maxFrameDepth+1)
		assert.NotEmpty(t, frames[maxFrameDepth].starts)
		assert.Empty(t, frames[maxFrameDepth+1].starts)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		main := &fakeFrame{}
		_, err := NewScraper("", zerolog.Nop()).ScrapeFrame(cctx, "", main)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, main.starts)
	})
}

func TestScrapeSelect2Options(t *testing.T) {
	ctx := context.Background()
	panel := []Option{{OptionIndex: 0, Text: "Red"}, {OptionIndex: 1, Text: "Green"}}

	t.Run("RecordedAtScrapeTime", func(t *testing.T) {
		main := &fakeFrame{
			elements: []ElementMeta{{ID: "0", TagName: "a", Attributes: map[string]string{"class": "select2-choice"}}},
			select2:  []string{"0"},
			panel:    panel,
		}
		snap, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", main)
		require.NoError(t, err)
		assert.Equal(t, panel, snap.IDToElement["0"].Options)
		assert.Equal(t, []string{
			"click [unique_id='0']",
			"read handle [unique_id='0']",
			"press Escape #select2-drop",
		}, main.log)
		assert.False(t, main.open)

		require.NoError(t, main.Click(snap.IDToCSS["0"], 0))
		later, err := ReadSelect2Options(ctx, main, nil)
		require.NoError(t, err)
		assert.Equal(t, snap.IDToElement["0"].Options, later)
	})

	t.Run("FailureLeavesOptionsEmpty", func(t *testing.T) {
		main := &fakeFrame{
			elements: []ElementMeta{{ID: "0", TagName: "a"}, {ID: "1", TagName: "button"}},
			select2:  []string{"0"},
			clickErr: errors.New("not visible"),
		}
		snap, err := NewScraper("", zerolog.Nop()).ScrapeFrame(ctx, "", main)
		require.NoError(t, err)
		assert.Empty(t, snap.IDToElement["0"].Options)
		assert.Len(t, snap.IDToElement, 2)
	})
}

func TestScrapeScriptClearsEarlierStamps(t *testing.T) {
	clearAt := strings.Index(scrapeScript, "removeAttribute(idAttr)")
	stamp := strings.Index(scrapeScript, "setAttribute(idAttr")
	require.NotEqual(t, -1, clearAt)
	require.NotEqual(t, -1, stamp)
	assert.Less(t, clearAt, stamp)
}
