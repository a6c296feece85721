package dom

import (
	"context"
	"strings"
	"time"

	"github.com/polzovatel/webeye/internal/snapshot"
)

// InteractiveElement names the tags a label may wrap.
type InteractiveElement string

const (
	A      InteractiveElement = "a"
	Input  InteractiveElement = "input"
	Select InteractiveElement = "select"
	Button InteractiveElement = "button"
)

// AttrOptions controls how Element.Attr reads an attribute. Dynamic skips the
// snapshot copy and always asks the live page.
type AttrOptions struct {
	Dynamic bool
	Timeout time.Duration
}

// Element pairs one live locator with the frame it lives in and the metadata
// recorded for it at scrape time. Classification is never cached: the
// discriminating attribute is read live on every call.
type Element struct {
	locator Locator
	frame   Frame
	static  snapshot.ElementMeta
	cfg     Config
}

func newElement(locator Locator, frame Frame, static snapshot.ElementMeta, cfg Config) *Element {
	return &Element{locator: locator, frame: frame, static: static, cfg: cfg}
}

func (e *Element) TagName() string { return e.static.TagName }

func (e *Element) ID() string { return e.static.ID }

func (e *Element) Attributes() map[string]string { return e.static.Attributes }

func (e *Element) Options() []snapshot.Option { return e.static.Options }

func (e *Element) Frame() Frame { return e.frame }

func (e *Element) Locator() Locator { return e.locator }

// Static returns the scrape-time record.
func (e *Element) Static() snapshot.ElementMeta { return e.static }

// Attr returns the snapshot value of name when present and not Dynamic;
// otherwise it reads the attribute from the live element.
func (e *Element) Attr(ctx context.Context, name string, opts AttrOptions) (string, error) {
	if !opts.Dynamic {
		if v := e.static.Attributes[name]; v != "" {
			return v, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.locator.GetAttribute(name, e.timeout(opts.Timeout))
	if err != nil {
		return "", wrap(err)
	}
	return v, nil
}

func (e *Element) liveAttr(ctx context.Context, name string) (string, error) {
	return e.Attr(ctx, name, AttrOptions{Dynamic: true})
}

func (e *Element) IsCheckbox(ctx context.Context) (bool, error) {
	return e.isInputOfType(ctx, "checkbox")
}

func (e *Element) IsRadio(ctx context.Context) (bool, error) {
	return e.isInputOfType(ctx, "radio")
}

func (e *Element) isInputOfType(ctx context.Context, typ string) (bool, error) {
	if e.TagName() != string(Input) {
		return false, nil
	}
	v, err := e.liveAttr(ctx, "type")
	if err != nil {
		return false, err
	}
	return v == typ, nil
}

// IsSelect2Dropdown reports whether the element is one of the parts of a
// select2 widget a user clicks to open it.
func (e *Element) IsSelect2Dropdown(ctx context.Context) (bool, error) {
	tag := e.TagName()
	switch tag {
	case "a", "span", "input":
	default:
		return false, nil
	}
	class, err := e.liveAttr(ctx, "class")
	if err != nil {
		return false, err
	}
	if class == "" {
		return false, nil
	}
	switch tag {
	case "a":
		return strings.Contains(class, "select2-choice"), nil
	case "span":
		return strings.Contains(class, "select2-chosen") || strings.Contains(class, "select2-arrow"), nil
	default:
		return strings.Contains(class, "select2-input"), nil
	}
}

// Select2Dropdown returns the dropdown driver for this element.
func (e *Element) Select2Dropdown(ctx context.Context) (*Select2Dropdown, error) {
	ok, err := e.IsSelect2Dropdown(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ClassificationError{Kind: ErrNotACustomDropdown, ElementID: e.ID(), TagName: e.TagName()}
	}
	return &Select2Dropdown{element: e, frame: e.frame, cfg: e.cfg}, nil
}

// FindInteractiveDescendant returns the id of the first interactable direct
// child of a label with the given tag, from snapshot data only.
func (e *Element) FindInteractiveDescendant(typ InteractiveElement) (string, bool, error) {
	if e.TagName() != "label" {
		return "", false, &ClassificationError{Kind: ErrNotALabel, ElementID: e.ID(), TagName: e.TagName()}
	}
	for _, child := range e.static.Children {
		if !child.Interactable {
			continue
		}
		if child.TagName == string(typ) {
			return child.ID, true, nil
		}
	}
	return "", false, nil
}

// InputSequentially types text one key at a time so per-keystroke listeners
// (autocomplete, masks) fire. A zero timeout means the input-text timeout.
func (e *Element) InputSequentially(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = e.cfg.InputTextTimeout
	}
	return wrap(e.locator.PressSequentially(text, timeout))
}

func (e *Element) Click(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.locator.Click(e.timeout(timeout)))
}

func (e *Element) Check(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.locator.Check(e.timeout(timeout)))
}

// Clear empties an input before sequential typing.
func (e *Element) Clear(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.locator.Fill("", e.timeout(timeout)))
}

// SelectIndex picks an option of a native select by position.
func (e *Element) SelectIndex(ctx context.Context, index int, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.locator.SelectIndex(index, e.timeout(timeout)))
}

func (e *Element) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return e.cfg.ActionTimeout
}
