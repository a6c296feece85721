package dom

import (
	"errors"
	"fmt"
)

var (
	ErrMissingMetadata     = errors.New("element metadata missing from snapshot")
	ErrMissingFrameMapping = errors.New("element frame missing from snapshot")
	ErrMissingSelector     = errors.New("element selector missing from snapshot")
	ErrUnresolvedFrame     = errors.New("frame chain cannot be resolved")
	ErrFrameNotAttached    = errors.New("frame not attached")
	ErrElementNotFound     = errors.New("element not found")
	ErrAmbiguousElement    = errors.New("multiple elements found")
	ErrNotACustomDropdown  = errors.New("element is not a select2 dropdown")
	ErrNotALabel           = errors.New("element is not a label")
)

// LookupError reports an element id the snapshot has no entry for.
type LookupError struct {
	Kind      error
	ElementID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: element_id=%s", e.Kind, e.ElementID)
}

func (e *LookupError) Unwrap() error { return e.Kind }

// FrameError reports a frame on the path to an element that could not be
// resolved statically or reached live.
type FrameError struct {
	Kind    error
	FrameID string
	Reason  string
	Err     error
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("%v: frame_id=%s", e.Kind, e.FrameID)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FrameError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MatchError reports a selector that did not match exactly one live element.
type MatchError struct {
	Kind      error
	ElementID string
	Selector  string
	Count     int
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%v: num=%d selector=%s element_id=%s", e.Kind, e.Count, e.Selector, e.ElementID)
}

func (e *MatchError) Unwrap() error { return e.Kind }

// ClassificationError reports a widget operation called on the wrong kind of element.
type ClassificationError struct {
	Kind      error
	ElementID string
	TagName   string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%v: element_id=%s tag=%s", e.Kind, e.ElementID, e.TagName)
}

func (e *ClassificationError) Unwrap() error { return e.Kind }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
