package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const maxFrameDepth = 16

const select2Drop = "#select2-drop"

// scrapeScript clears the stamps of any earlier scrape, stamps every
// interactive element of one document with a fresh id and returns its
// metadata. Label children share the stamping so a label can point at the
// control it wraps. Outermost select2 triggers are listed separately.
const scrapeScript = `({idAttr, start}) => {
	for (const el of document.querySelectorAll("[" + idAttr + "]")) el.removeAttribute(idAttr);
	let next = start;
	const selector = "a,button,input,select,textarea,label,iframe,[role],[tabindex],[onclick],[contenteditable='true']";
	const seen = new Map();
	const idOf = (el) => {
		if (!seen.has(el)) {
			const id = String(next++);
			el.setAttribute(idAttr, id);
			seen.set(el, id);
		}
		return seen.get(el);
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		return rect.width > 0 || rect.height > 0;
	};
	const clean = (s) => (s || "").replace(/\s+/g, " ").trim();
	const attrs = (el) => {
		const out = {};
		for (const a of el.attributes) {
			if (a.name !== idAttr) out[a.name] = a.value;
		}
		return out;
	};
	const interactable = (el) => el.matches(selector) && el.tagName.toLowerCase() !== "label" && visible(el);
	const select2Pairs = {a: "select2-choice", span: "select2-arrow select2-chosen", input: "select2-input"};
	const isSelect2 = (el, tag) => {
		const want = select2Pairs[tag];
		return !!want && want.split(" ").some((c) => el.classList.contains(c));
	};

	const elements = [];
	const select2 = [];
	for (const el of document.querySelectorAll(selector)) {
		const tag = el.tagName.toLowerCase();
		if (tag !== "iframe" && !visible(el)) continue;
		const rec = {tagName: tag, id: idOf(el), attributes: attrs(el), interactable: tag !== "iframe" && interactable(el)};
		if (tag === "select") {
			rec.options = Array.from(el.options).map((o, i) => ({optionIndex: i, text: clean(o.textContent)}));
		}
		if (tag === "label") {
			rec.children = Array.from(el.children).map((c) => ({
				tagName: c.tagName.toLowerCase(),
				id: idOf(c),
				attributes: attrs(c),
				interactable: interactable(c),
			}));
		}
		if (isSelect2(el, tag) && !select2.some((s) => s.el.contains(el))) {
			select2.push({el, id: rec.id});
		}
		elements.push(rec);
	}
	return {elements, next, select2: select2.map((s) => s.id)};
}`

type scrapeResult struct {
	Elements []ElementMeta `json:"elements"`
	Next     int           `json:"next"`
	Select2  []string      `json:"select2"`
}

// Frame is the part of a live frame the scraper drives.
type Frame interface {
	Evaluator
	ChildFrames() []Frame
	// OwnerAttr reads an attribute of the iframe element hosting the frame.
	OwnerAttr(name string) (string, error)
	Click(selector string, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error
	// Handle returns the element matched by selector as an Evaluate argument.
	Handle(selector string, timeout time.Duration) (interface{}, error)
}

// Scraper captures a Snapshot from a live page, descending into every
// attached iframe. Ids keep increasing across scrapes of the same Scraper.
type Scraper struct {
	IDAttr string
	Logger zerolog.Logger
	// Select2Settle is how long an opened select2 panel gets to render before
	// its options are read. Zero reads immediately.
	Select2Settle time.Duration
	// ActionTimeout bounds the clicks and key presses used to read select2
	// options.
	ActionTimeout time.Duration

	mu   sync.Mutex
	next int
}

func NewScraper(idAttr string, logger zerolog.Logger) *Scraper {
	if idAttr == "" {
		idAttr = DefaultIDAttr
	}
	return &Scraper{IDAttr: idAttr, Logger: logger, ActionTimeout: 5 * time.Second}
}

// Scrape restamps the page and returns a fresh snapshot. Snapshots taken
// earlier from the same page no longer resolve after this call.
func (s *Scraper) Scrape(ctx context.Context, page playwright.Page) (*Snapshot, error) {
	return s.ScrapeFrame(ctx, page.URL(), FromFrame(page.MainFrame()))
}

// ScrapeFrame scrapes main and every child frame reachable from it.
func (s *Scraper) ScrapeFrame(ctx context.Context, url string, main Frame) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := New(url)
	next, err := s.scrapeFrame(ctx, snap, main, MainFrame, s.next, 0)
	if err != nil {
		return nil, err
	}
	s.next = next
	s.Logger.Info().Str("url", snap.URL).Int("elements", len(snap.IDToElement)).Msg("scraped page")
	return snap, nil
}

func (s *Scraper) scrapeFrame(ctx context.Context, snap *Snapshot, frame Frame, frameID string, next, depth int) (int, error) {
	if err := ctx.Err(); err != nil {
		return next, err
	}
	if depth > maxFrameDepth {
		s.Logger.Warn().Str("frame", frameID).Msg("frame nesting too deep, skipping")
		return next, nil
	}

	val, err := frame.Evaluate(scrapeScript, map[string]any{"idAttr": s.IDAttr, "start": next})
	if err != nil {
		if frameID == MainFrame {
			return next, fmt.Errorf("playwright: %w", err)
		}
		// Cross-origin or detached child frames are left out of the snapshot.
		s.Logger.Debug().Err(err).Str("frame", frameID).Msg("skip frame")
		return next, nil
	}
	var res scrapeResult
	if err := decodeEvaluated(val, &res); err != nil {
		return next, fmt.Errorf("decode scrape result: %w", err)
	}
	s.ingest(snap, res.Elements, frameID)
	if res.Next > next {
		next = res.Next
	}
	for _, id := range res.Select2 {
		if err := s.readSelect2(ctx, snap, frame, id); err != nil {
			if ctx.Err() != nil {
				return next, ctx.Err()
			}
			s.Logger.Debug().Err(err).Str("element_id", id).Msg("read select2 options")
		}
	}

	for _, child := range frame.ChildFrames() {
		childID, err := child.OwnerAttr(s.IDAttr)
		if err != nil || childID == "" {
			continue
		}
		if _, ok := snap.IDToElement[childID]; !ok {
			continue
		}
		next, err = s.scrapeFrame(ctx, snap, child, childID, next, depth+1)
		if err != nil {
			return next, err
		}
	}
	return next, nil
}

// readSelect2 opens the select2 widget id, records the rendered options on its
// metadata and closes the panel again.
func (s *Scraper) readSelect2(ctx context.Context, snap *Snapshot, frame Frame, id string) error {
	el, ok := snap.IDToElement[id]
	if !ok {
		return nil
	}
	sel := snap.IDToCSS[id]
	if err := frame.Click(sel, s.ActionTimeout); err != nil {
		return fmt.Errorf("playwright: %w", err)
	}
	defer func() {
		if err := frame.Press(select2Drop, "Escape", s.ActionTimeout); err != nil {
			s.Logger.Debug().Err(err).Str("element_id", id).Msg("close select2")
		}
	}()
	if s.Select2Settle > 0 {
		t := time.NewTimer(s.Select2Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	handle, err := frame.Handle(sel, s.ActionTimeout)
	if err != nil {
		return fmt.Errorf("playwright: %w", err)
	}
	opts, err := ReadSelect2Options(ctx, frame, handle)
	if err != nil {
		return err
	}
	el.Options = opts
	snap.IDToElement[id] = el
	return nil
}

func (s *Scraper) ingest(snap *Snapshot, elements []ElementMeta, frameID string) {
	for _, el := range elements {
		if el.ID == "" {
			continue
		}
		for i := range el.Children {
			el.Children[i].Frame = frameID
		}
		snap.Add(el, frameID, Selector(s.IDAttr, el.ID))
	}
}

// FromFrame adapts a playwright frame for the scraper.
func FromFrame(frame playwright.Frame) Frame {
	return &pwFrame{frame: frame}
}

type pwFrame struct {
	frame playwright.Frame
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (f *pwFrame) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	return f.frame.Evaluate(expression, arg...)
}

func (f *pwFrame) ChildFrames() []Frame {
	children := f.frame.ChildFrames()
	out := make([]Frame, 0, len(children))
	for _, c := range children {
		out = append(out, &pwFrame{frame: c})
	}
	return out
}

func (f *pwFrame) OwnerAttr(name string) (string, error) {
	h, err := f.frame.FrameElement()
	if err != nil {
		return "", err
	}
	return h.GetAttribute(name)
}

func (f *pwFrame) Click(selector string, timeout time.Duration) error {
	return f.frame.Locator(selector).Click(playwright.LocatorClickOptions{Timeout: ms(timeout)})
}

func (f *pwFrame) Press(selector, key string, timeout time.Duration) error {
	return f.frame.Locator(selector).Press(key, playwright.LocatorPressOptions{Timeout: ms(timeout)})
}

func (f *pwFrame) Handle(selector string, timeout time.Duration) (interface{}, error) {
	return f.frame.Locator(selector).ElementHandle(playwright.LocatorElementHandleOptions{Timeout: ms(timeout)})
}
