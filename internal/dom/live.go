package dom

import (
	"context"
	"time"

	"github.com/polzovatel/webeye/internal/snapshot"
)

// Page is the root of every resolution: the top-level document both as a
// locator scope and as a live frame.
type Page interface {
	Scope
	MainFrame() Frame
}

// Scope builds locators that pierce the iframes resolved so far.
type Scope interface {
	Locator(selector string) Locator
	FrameLocator(selector string) Scope
}

// Frame is a live document: the main frame or the content frame of an iframe.
type Frame interface {
	QuerySelector(selector string) (Handle, error)
	Locator(selector string) Locator
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// Handle is a live reference to a single element.
type Handle interface {
	// ContentFrame returns nil when the element is not an attached iframe.
	ContentFrame() (Frame, error)
}

// Locator is a lazily evaluated query. Every action is bounded by its timeout.
type Locator interface {
	Count() (int, error)
	Nth(index int) Locator
	GetAttribute(name string, timeout time.Duration) (string, error)
	Click(timeout time.Duration) error
	Check(timeout time.Duration) error
	Fill(text string, timeout time.Duration) error
	Press(key string, timeout time.Duration) error
	PressSequentially(text string, timeout time.Duration) error
	SelectIndex(index int, timeout time.Duration) error
	WaitFor(timeout time.Duration) error
	ElementHandle(timeout time.Duration) (Handle, error)
}

// OptionReader extracts the rendered options of an open custom dropdown.
type OptionReader func(ctx context.Context, frame Frame, element Handle) ([]snapshot.Option, error)

// evalArg is implemented by handles that must be unwrapped before being
// handed to Evaluate.
type evalArg interface {
	EvalArg() interface{}
}

// ReadSelect2Options is the default OptionReader. It runs the scraper's own
// extraction so option indices line up with the snapshot.
func ReadSelect2Options(ctx context.Context, frame Frame, element Handle) ([]snapshot.Option, error) {
	var arg interface{} = element
	if e, ok := element.(evalArg); ok {
		arg = e.EvalArg()
	}
	return snapshot.ReadSelect2Options(ctx, frame, arg)
}

type SettleMode string

const (
	// SettleFixed sleeps the full settle delay after opening a dropdown.
	SettleFixed SettleMode = "fixed"
	// SettlePoll waits for the first rendered option, bounded by the settle
	// delay, and sleeps whatever is left of the delay if it never shows.
	SettlePoll SettleMode = "poll"
)

const (
	DefaultActionTimeout    = 5 * time.Second
	DefaultInputTextTimeout = 3 * time.Second
	DefaultSettleDelay      = 3 * time.Second
)

// Config carries the timeouts and collaborators shared by every element an
// Index hands out.
type Config struct {
	IDAttr           string
	ActionTimeout    time.Duration
	InputTextTimeout time.Duration
	SettleDelay      time.Duration
	SettleMode       SettleMode
	ReadOptions      OptionReader
}

func DefaultConfig() Config {
	return Config{
		IDAttr:           snapshot.DefaultIDAttr,
		ActionTimeout:    DefaultActionTimeout,
		InputTextTimeout: DefaultInputTextTimeout,
		SettleDelay:      DefaultSettleDelay,
		SettleMode:       SettleFixed,
		ReadOptions:      ReadSelect2Options,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IDAttr == "" {
		c.IDAttr = def.IDAttr
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = def.ActionTimeout
	}
	if c.InputTextTimeout <= 0 {
		c.InputTextTimeout = def.InputTextTimeout
	}
	// A negative settle delay disables settling.
	switch {
	case c.SettleDelay == 0:
		c.SettleDelay = def.SettleDelay
	case c.SettleDelay < 0:
		c.SettleDelay = 0
	}
	if c.SettleMode == "" {
		c.SettleMode = def.SettleMode
	}
	if c.ReadOptions == nil {
		c.ReadOptions = def.ReadOptions
	}
	return c
}
