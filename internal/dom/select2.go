package dom

import (
	"context"
	"time"

	"github.com/polzovatel/webeye/internal/snapshot"
)

const (
	select2Drop    = "#select2-drop"
	select2Options = "#select2-drop li[role='option']"
)

// Select2Dropdown drives a select2 widget. It keeps no open/closed state of
// its own; the caller sequences Open, Options, SelectByIndex and Close.
type Select2Dropdown struct {
	element *Element
	frame   Frame
	cfg     Config
}

func (d *Select2Dropdown) Element() *Element { return d.element }

// Open clicks the widget and waits for the option panel to render.
func (d *Select2Dropdown) Open(ctx context.Context, timeout time.Duration) error {
	if err := d.element.Click(ctx, timeout); err != nil {
		return err
	}
	return d.settle(ctx)
}

func (d *Select2Dropdown) settle(ctx context.Context) error {
	delay := d.cfg.SettleDelay
	if delay <= 0 {
		return nil
	}
	start := time.Now()
	if d.cfg.SettleMode == SettlePoll {
		if err := d.frame.Locator(select2Options).Nth(0).WaitFor(delay); err == nil {
			return nil
		}
		delay -= time.Since(start)
		if delay <= 0 {
			return nil
		}
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close sends Escape to the panel. The panel is a page level overlay, so the
// key goes to it rather than to the widget.
func (d *Select2Dropdown) Close(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(d.frame.Locator(select2Drop).Press("Escape", d.element.timeout(timeout)))
}

// Options reads the options of the open panel.
func (d *Select2Dropdown) Options(ctx context.Context, timeout time.Duration) ([]snapshot.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handle, err := d.element.Locator().ElementHandle(d.element.timeout(timeout))
	if err != nil {
		return nil, wrap(err)
	}
	return d.cfg.ReadOptions(ctx, d.frame, handle)
}

// SelectByIndex clicks the index-th rendered option, counting from zero.
func (d *Select2Dropdown) SelectByIndex(ctx context.Context, index int, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(d.frame.Locator(select2Options).Nth(index).Click(d.element.timeout(timeout)))
}
