package dom

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// FromPage adapts a playwright page to the live interfaces used by Index.
func FromPage(page playwright.Page) Page {
	return &pwPage{page: page}
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Locator(selector string) Locator {
	return &pwLocator{loc: p.page.Locator(selector)}
}

func (p *pwPage) FrameLocator(selector string) Scope {
	return &pwFrameScope{fl: p.page.FrameLocator(selector)}
}

func (p *pwPage) MainFrame() Frame {
	return &pwFrame{frame: p.page.MainFrame()}
}

type pwFrameScope struct {
	fl playwright.FrameLocator
}

func (s *pwFrameScope) Locator(selector string) Locator {
	return &pwLocator{loc: s.fl.Locator(selector)}
}

func (s *pwFrameScope) FrameLocator(selector string) Scope {
	return &pwFrameScope{fl: s.fl.FrameLocator(selector)}
}

type pwFrame struct {
	frame playwright.Frame
}

func (f *pwFrame) QuerySelector(selector string) (Handle, error) {
	h, err := f.frame.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}
	return &pwHandle{handle: h}, nil
}

func (f *pwFrame) Locator(selector string) Locator {
	return &pwLocator{loc: f.frame.Locator(selector)}
}

func (f *pwFrame) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	return f.frame.Evaluate(expression, arg...)
}

type pwHandle struct {
	handle playwright.ElementHandle
}

func (h *pwHandle) ContentFrame() (Frame, error) {
	fr, err := h.handle.ContentFrame()
	if err != nil {
		return nil, err
	}
	if fr == nil {
		return nil, nil
	}
	return &pwFrame{frame: fr}, nil
}

func (h *pwHandle) EvalArg() interface{} { return h.handle }

type pwLocator struct {
	loc playwright.Locator
}

func (l *pwLocator) Count() (int, error) { return l.loc.Count() }

func (l *pwLocator) Nth(index int) Locator { return &pwLocator{loc: l.loc.Nth(index)} }

func (l *pwLocator) GetAttribute(name string, timeout time.Duration) (string, error) {
	return l.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) Click(timeout time.Duration) error {
	return l.loc.Click(playwright.LocatorClickOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) Check(timeout time.Duration) error {
	return l.loc.Check(playwright.LocatorCheckOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) Fill(text string, timeout time.Duration) error {
	return l.loc.Fill(text, playwright.LocatorFillOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) Press(key string, timeout time.Duration) error {
	return l.loc.Press(key, playwright.LocatorPressOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) PressSequentially(text string, timeout time.Duration) error {
	return l.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Timeout: ms(timeout)})
}

func (l *pwLocator) SelectIndex(index int, timeout time.Duration) error {
	_, err := l.loc.SelectOption(
		playwright.SelectOptionValues{Indexes: &[]int{index}},
		playwright.LocatorSelectOptionOptions{Timeout: ms(timeout)},
	)
	return err
}

func (l *pwLocator) WaitFor(timeout time.Duration) error {
	return l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
}

func (l *pwLocator) ElementHandle(timeout time.Duration) (Handle, error) {
	h, err := l.loc.ElementHandle(playwright.LocatorElementHandleOptions{Timeout: ms(timeout)})
	if err != nil {
		return nil, err
	}
	return &pwHandle{handle: h}, nil
}
