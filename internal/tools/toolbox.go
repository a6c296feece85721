package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/webeye/internal/dom"
	"github.com/polzovatel/webeye/internal/snapshot"
)

type Toolbox interface {
	Describe() []Tool
	Invoke(ctx context.Context, name string, input map[string]any) (Result, error)
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type Result struct {
	Observation string
}

type PromptFunc func(ctx context.Context, message string) (string, error)

// Navigator is the page level part of browser.Controller the tools need.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	WaitForStableDOM(ctx context.Context, timeout time.Duration) error
	SaveState(ctx context.Context, path string) error
}

const stableDOMTimeout = 5 * time.Second

type standard struct {
	nav     Navigator
	session *Session
	prompt  PromptFunc
	logger  zerolog.Logger
	tools   []Tool
}

func New(nav Navigator, session *Session, prompt PromptFunc, logger zerolog.Logger) Toolbox {
	return &standard{
		nav:     nav,
		session: session,
		prompt:  prompt,
		logger:  logger,
		tools: []Tool{
			newTool("navigate", "Open URL and take a fresh snapshot", schema{"url": str("url to open")}, []string{"url"}),
			newTool("go_back", "Go back in history and take a fresh snapshot", schema{}, nil),
			newTool("rescrape", "Take a fresh snapshot of the current page; element ids change", schema{}, nil),
			newTool("click", "Click element by id", schema{"element_id": str("element id from snapshot")}, []string{"element_id"}),
			newTool("input_text", "Clear the field and type text key by key (label ids resolve to the wrapped input)", schema{"element_id": str("element id from snapshot"), "text": str("text to type")}, []string{"element_id", "text"}),
			newTool("check", "Check a checkbox or radio, or the one wrapped by a label", schema{"element_id": str("element id from snapshot")}, []string{"element_id"}),
			newTool("select_option", "Pick an option of a select or select2 dropdown by text or index", schema{"element_id": str("element id from snapshot"), "option": str("option text"), "index": integer("zero based option index")}, []string{"element_id"}),
			newTool("list_options", "List options of a select or select2 dropdown", schema{"element_id": str("element id from snapshot")}, []string{"element_id"}),
			newTool("get_attribute", "Read an attribute; dynamic reads the live page instead of the snapshot", schema{"element_id": str("element id from snapshot"), "name": str("attribute name"), "dynamic": boolean("read live value")}, []string{"element_id", "name"}),
			newTool("request_user_input", "Ask user for extra info (codes, confirm)", schema{"prompt": str("question to user")}, []string{"prompt"}),
			newTool("save_state", "Save current storage state", schema{"path": str("path to save")}, []string{"path"}),
		},
	}
}

func (s *standard) Describe() []Tool {
	return append([]Tool(nil), s.tools...)
}

func (s *standard) Invoke(ctx context.Context, name string, input map[string]any) (Result, error) {
	s.logger.Debug().Str("tool", name).Interface("input", input).Msg("invoke")
	switch name {
	case "navigate":
		url, err := requiredString(input, "url")
		if err != nil {
			return Result{}, err
		}
		if err := s.nav.Navigate(ctx, url); err != nil {
			return Result{}, err
		}
		if err := s.nav.WaitForStableDOM(ctx, stableDOMTimeout); err != nil {
			s.logger.Debug().Err(err).Msg("wait for stable DOM after navigate")
		}
		snap, err := s.session.Rescrape(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("opened %s\n%s", url, snap)}, nil

	case "go_back":
		if err := s.nav.GoBack(ctx); err != nil {
			return Result{}, err
		}
		if err := s.nav.WaitForStableDOM(ctx, stableDOMTimeout); err != nil {
			s.logger.Debug().Err(err).Msg("wait for stable DOM after go back")
		}
		snap, err := s.session.Rescrape(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("went back\n%s", snap)}, nil

	case "rescrape":
		snap, err := s.session.Rescrape(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: snap.String()}, nil

	case "click":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		if err := el.Click(ctx, 0); err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("clicked %s <%s>", el.ID(), el.TagName())}, nil

	case "input_text":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		text, err := requiredString(input, "text")
		if err != nil {
			return Result{}, err
		}
		if el, err = s.throughLabel(ctx, el, dom.Input); err != nil {
			return Result{}, err
		}
		if err := el.Clear(ctx, 0); err != nil {
			return Result{}, err
		}
		if err := el.InputSequentially(ctx, text, 0); err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("typed into %s", el.ID())}, nil

	case "check":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		if el, err = s.throughLabel(ctx, el, dom.Input); err != nil {
			return Result{}, err
		}
		if err := s.check(ctx, el); err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("checked %s", el.ID())}, nil

	case "select_option":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		text := optionalString(input, "option")
		index, hasIndex := optionalIndex(input, "index")
		if text == "" && !hasIndex {
			return Result{}, fmt.Errorf("field option or index required")
		}
		opt, err := s.selectOption(ctx, el, text, index, hasIndex)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("selected %q (#%d) in %s", opt.Text, opt.OptionIndex, el.ID())}, nil

	case "list_options":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		opts, err := s.listOptions(ctx, el)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: formatOptions(opts)}, nil

	case "get_attribute":
		el, err := s.locate(ctx, input)
		if err != nil {
			return Result{}, err
		}
		attr, err := requiredString(input, "name")
		if err != nil {
			return Result{}, err
		}
		val, err := el.Attr(ctx, attr, dom.AttrOptions{Dynamic: optionalBool(input, "dynamic")})
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: val}, nil

	case "request_user_input":
		if s.prompt == nil {
			return Result{}, fmt.Errorf("prompt unavailable")
		}
		msg, err := requiredString(input, "prompt")
		if err != nil {
			return Result{}, err
		}
		answer, err := s.prompt(ctx, msg)
		if err != nil {
			return Result{}, err
		}
		return Result{Observation: answer}, nil

	case "save_state":
		path, err := requiredString(input, "path")
		if err != nil {
			return Result{}, err
		}
		if err := s.nav.SaveState(ctx, path); err != nil {
			return Result{}, err
		}
		return Result{Observation: fmt.Sprintf("state saved to %s", path)}, nil
	default:
		return Result{}, fmt.Errorf("unknown tool %s", name)
	}
}

func (s *standard) locate(ctx context.Context, input map[string]any) (*dom.Element, error) {
	id, err := requiredString(input, "element_id")
	if err != nil {
		return nil, err
	}
	return s.session.Locate(ctx, id)
}

// throughLabel swaps a label for the control of type typ it wraps.
func (s *standard) throughLabel(ctx context.Context, el *dom.Element, typ dom.InteractiveElement) (*dom.Element, error) {
	if el.TagName() != "label" {
		return el, nil
	}
	id, ok, err := el.FindInteractiveDescendant(typ)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("label %s wraps no %s", el.ID(), typ)
	}
	s.logger.Debug().Str("label", el.ID()).Str("element_id", id).Msg("label resolved to child")
	return s.session.Locate(ctx, id)
}

func (s *standard) check(ctx context.Context, el *dom.Element) error {
	isCheckbox, err := el.IsCheckbox(ctx)
	if err != nil {
		return err
	}
	if !isCheckbox {
		isRadio, err := el.IsRadio(ctx)
		if err != nil {
			return err
		}
		if !isRadio {
			return fmt.Errorf("element %s is neither checkbox nor radio", el.ID())
		}
	}
	return el.Check(ctx, 0)
}

func (s *standard) selectOption(ctx context.Context, el *dom.Element, text string, index int, hasIndex bool) (snapshot.Option, error) {
	if el.TagName() == string(dom.Select) {
		opt, err := findOption(el.Options(), text, index, hasIndex)
		if err != nil {
			return snapshot.Option{}, fmt.Errorf("select %s: %w", el.ID(), err)
		}
		return opt, el.SelectIndex(ctx, opt.OptionIndex, 0)
	}

	dd, err := el.Select2Dropdown(ctx)
	if err != nil {
		return snapshot.Option{}, err
	}
	if err := dd.Open(ctx, 0); err != nil {
		return snapshot.Option{}, err
	}
	opts, err := dd.Options(ctx, 0)
	if err == nil {
		var opt snapshot.Option
		if opt, err = findOption(opts, text, index, hasIndex); err == nil {
			if err = dd.SelectByIndex(ctx, opt.OptionIndex, 0); err == nil {
				return opt, nil
			}
		}
	}
	if cerr := dd.Close(ctx, 0); cerr != nil {
		s.logger.Warn().Err(cerr).Str("element_id", el.ID()).Msg("close select2 dropdown")
	}
	return snapshot.Option{}, fmt.Errorf("select2 %s: %w", el.ID(), err)
}

func (s *standard) listOptions(ctx context.Context, el *dom.Element) ([]snapshot.Option, error) {
	if el.TagName() == string(dom.Select) {
		return el.Options(), nil
	}
	dd, err := el.Select2Dropdown(ctx)
	if err != nil {
		return nil, err
	}
	if err := dd.Open(ctx, 0); err != nil {
		return nil, err
	}
	opts, err := dd.Options(ctx, 0)
	if cerr := dd.Close(ctx, 0); cerr != nil && err == nil {
		err = cerr
	}
	return opts, err
}

// findOption matches by index when given, otherwise by case-insensitive text.
func findOption(opts []snapshot.Option, text string, index int, hasIndex bool) (snapshot.Option, error) {
	if hasIndex {
		for _, o := range opts {
			if o.OptionIndex == index {
				return o, nil
			}
		}
		return snapshot.Option{}, fmt.Errorf("no option with index %d among %d", index, len(opts))
	}
	want := strings.ToLower(strings.TrimSpace(text))
	for _, o := range opts {
		if strings.ToLower(strings.TrimSpace(o.Text)) == want {
			return o, nil
		}
	}
	return snapshot.Option{}, fmt.Errorf("no option %q in %s", text, formatOptions(opts))
}

func formatOptions(opts []snapshot.Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, fmt.Sprintf("%d=%s", o.OptionIndex, o.Text))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Helpers for schema and extraction.
type schema map[string]any

func newTool(name, desc string, props schema, required []string) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func requiredString(input map[string]any, key string) (string, error) {
	val, ok := input[key]
	if !ok {
		return "", fmt.Errorf("field %s required", key)
	}
	switch v := val.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("field %s empty", key)
		}
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("field %s must be string", key)
	}
}

func optionalString(input map[string]any, key string) string {
	val, ok := input[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func optionalBool(input map[string]any, key string) bool {
	val, ok := input[key]
	if !ok {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// optionalIndex reports whether key holds an integer, and its value.
func optionalIndex(input map[string]any, key string) (int, bool) {
	val, ok := input[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
