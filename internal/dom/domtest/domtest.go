// Package domtest provides an in-memory live page for exercising package dom
// without a browser.
package domtest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/polzovatel/webeye/internal/dom"
)

// ErrTimeout is returned by actions whose target never appears.
var ErrTimeout = errors.New("timeout exceeded")

// Page is a fake top-level document. Every live call made through it, or
// through any frame or locator derived from it, is recorded in order.
type Page struct {
	mu     sync.Mutex
	root   *Doc
	events []string
}

func NewPage() *Page {
	p := &Page{}
	p.root = &Doc{page: p, Name: "main"}
	return p
}

// Root returns the main document.
func (p *Page) Root() *Doc { return p.root }

// Events returns a copy of the recorded live calls.
func (p *Page) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// Reset forgets recorded calls.
func (p *Page) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

func (p *Page) record(format string, args ...any) {
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

func (p *Page) Locator(selector string) dom.Locator { return p.root.Locator(selector) }

func (p *Page) FrameLocator(selector string) dom.Scope {
	return &scope{page: p, doc: p.root.child(selector)}
}

func (p *Page) MainFrame() dom.Frame { return p.root }

// Node is one element of a Doc.
type Node struct {
	Attrs   map[string]string
	Value   string
	Typed   []string
	Pressed []string
	Clicks  int
	Checked bool
	// Selected is the index passed to the last SelectIndex, -1 before any.
	Selected int
	// TypeTimeout is the timeout of the last PressSequentially call.
	TypeTimeout time.Duration
	// OnClick runs under the page lock after a click is recorded.
	OnClick func()
}

// Doc is a fake document: the page itself or the content of an iframe.
type Doc struct {
	Name   string
	page   *Page
	nodes  map[string][]*Node
	frames map[string]*frame
	// EvaluateFunc answers Evaluate calls.
	EvaluateFunc func(expression string, arg ...interface{}) (interface{}, error)
}

type frame struct {
	doc *Doc
}

// Add appends a node matched by selector.
func (d *Doc) Add(selector string, attrs map[string]string) *Node {
	if d.nodes == nil {
		d.nodes = map[string][]*Node{}
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	n := &Node{Attrs: attrs, Selected: -1}
	d.nodes[selector] = append(d.nodes[selector], n)
	return n
}

// Remove drops every node matched by selector.
func (d *Doc) Remove(selector string) {
	delete(d.nodes, selector)
}

// AddFrame attaches an iframe matched by selector and returns its document.
func (d *Doc) AddFrame(selector, name string) *Doc {
	child := &Doc{Name: name, page: d.page}
	d.setFrame(selector, &frame{doc: child})
	return child
}

// AddDetachedFrame adds an iframe element whose content frame is unavailable.
func (d *Doc) AddDetachedFrame(selector string) {
	d.setFrame(selector, &frame{})
}

func (d *Doc) setFrame(selector string, f *frame) {
	if d.frames == nil {
		d.frames = map[string]*frame{}
	}
	d.frames[selector] = f
}

func (d *Doc) child(selector string) *Doc {
	if d == nil {
		return nil
	}
	if f, ok := d.frames[selector]; ok {
		return f.doc
	}
	return nil
}

func (d *Doc) QuerySelector(selector string) (dom.Handle, error) {
	d.page.mu.Lock()
	defer d.page.mu.Unlock()
	d.page.record("query %s %s", d.Name, selector)
	if f, ok := d.frames[selector]; ok {
		return &handle{content: f.doc}, nil
	}
	if nodes := d.nodes[selector]; len(nodes) > 0 {
		return &handle{node: nodes[0]}, nil
	}
	return nil, nil
}

func (d *Doc) Locator(selector string) dom.Locator {
	return &Locator{page: d.page, doc: d, selector: selector, nth: -1}
}

func (d *Doc) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	d.page.mu.Lock()
	d.page.record("evaluate %s", d.Name)
	fn := d.EvaluateFunc
	d.page.mu.Unlock()
	if fn == nil {
		return nil, errors.New("evaluate not supported")
	}
	return fn(expression, arg...)
}

type handle struct {
	node    *Node
	content *Doc
}

func (h *handle) ContentFrame() (dom.Frame, error) {
	if h.content == nil {
		return nil, nil
	}
	return h.content, nil
}

type scope struct {
	page *Page
	doc  *Doc
}

func (s *scope) Locator(selector string) dom.Locator {
	return &Locator{page: s.page, doc: s.doc, selector: selector, nth: -1}
}

func (s *scope) FrameLocator(selector string) dom.Scope {
	return &scope{page: s.page, doc: s.doc.child(selector)}
}

// Locator is a lazily evaluated selector over a Doc. A locator whose frame
// path does not exist matches nothing.
type Locator struct {
	page     *Page
	doc      *Doc
	selector string
	nth      int
}

func (l *Locator) name() string {
	doc := "<none>"
	if l.doc != nil {
		doc = l.doc.Name
	}
	if l.nth >= 0 {
		return fmt.Sprintf("%s %s[%d]", doc, l.selector, l.nth)
	}
	return fmt.Sprintf("%s %s", doc, l.selector)
}

func (l *Locator) matches() []*Node {
	if l.doc == nil {
		return nil
	}
	return l.doc.nodes[l.selector]
}

func (l *Locator) target() (*Node, error) {
	m := l.matches()
	if l.nth >= 0 {
		if l.nth >= len(m) {
			return nil, fmt.Errorf("locator %s: %w", l.name(), ErrTimeout)
		}
		return m[l.nth], nil
	}
	switch len(m) {
	case 0:
		return nil, fmt.Errorf("locator %s: %w", l.name(), ErrTimeout)
	case 1:
		return m[0], nil
	default:
		return nil, fmt.Errorf("strict mode violation: %s resolved to %d elements", l.name(), len(m))
	}
}

func (l *Locator) act(verb string, fn func(n *Node)) error {
	l.page.mu.Lock()
	l.page.record("%s %s", verb, l.name())
	n, err := l.target()
	if err != nil {
		l.page.mu.Unlock()
		return err
	}
	fn(n)
	l.page.mu.Unlock()
	return nil
}

func (l *Locator) Count() (int, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	l.page.record("count %s", l.name())
	return len(l.matches()), nil
}

func (l *Locator) Nth(index int) dom.Locator {
	c := *l
	c.nth = index
	return &c
}

func (l *Locator) GetAttribute(name string, _ time.Duration) (string, error) {
	var v string
	err := l.act("attr:"+name, func(n *Node) { v = n.Attrs[name] })
	return v, err
}

func (l *Locator) Click(time.Duration) error {
	var hook func()
	err := l.act("click", func(n *Node) {
		n.Clicks++
		hook = n.OnClick
	})
	if err == nil && hook != nil {
		l.page.mu.Lock()
		hook()
		l.page.mu.Unlock()
	}
	return err
}

func (l *Locator) Check(time.Duration) error {
	return l.act("check", func(n *Node) { n.Checked = true })
}

func (l *Locator) Fill(text string, _ time.Duration) error {
	return l.act("fill", func(n *Node) { n.Value = text })
}

func (l *Locator) Press(key string, _ time.Duration) error {
	return l.act("press:"+key, func(n *Node) { n.Pressed = append(n.Pressed, key) })
}

func (l *Locator) PressSequentially(text string, timeout time.Duration) error {
	return l.act("type", func(n *Node) {
		n.TypeTimeout = timeout
		for _, r := range text {
			n.Typed = append(n.Typed, string(r))
			n.Value += string(r)
		}
	})
}

func (l *Locator) SelectIndex(index int, _ time.Duration) error {
	return l.act("select", func(n *Node) { n.Selected = index })
}

func (l *Locator) WaitFor(time.Duration) error {
	return l.act("wait", func(*Node) {})
}

func (l *Locator) ElementHandle(time.Duration) (dom.Handle, error) {
	var h dom.Handle
	err := l.act("handle", func(n *Node) { h = &handle{node: n} })
	return h, err
}
