package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// MainFrame is the frame id of the top-level document.
const MainFrame = "main.frame"

// DefaultIDAttr is the attribute the scraper stamps on every element it records.
const DefaultIDAttr = "unique_id"

// Option is one rendered entry of a native or custom dropdown.
type Option struct {
	OptionIndex int    `json:"optionIndex"`
	Text        string `json:"text"`
}

// ElementMeta is the scrape-time record of one element.
type ElementMeta struct {
	TagName      string            `json:"tagName"`
	ID           string            `json:"id"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Options      []Option          `json:"options,omitempty"`
	Children     []ElementMeta     `json:"children,omitempty"`
	Frame        string            `json:"frame,omitempty"`
	Interactable bool              `json:"interactable,omitempty"`
}

// Snapshot is an immutable capture of a page's interactive elements together
// with the frame and selector needed to find each of them again.
type Snapshot struct {
	URL         string                 `json:"url"`
	IDToElement map[string]ElementMeta `json:"id_to_element"`
	IDToFrame   map[string]string      `json:"id_to_frame"`
	IDToCSS     map[string]string      `json:"id_to_css"`
}

func New(url string) *Snapshot {
	return &Snapshot{
		URL:         url,
		IDToElement: map[string]ElementMeta{},
		IDToFrame:   map[string]string{},
		IDToCSS:     map[string]string{},
	}
}

// Add records el as living in frame, addressed by css within that frame.
func (s *Snapshot) Add(el ElementMeta, frame, css string) {
	el.Frame = frame
	s.IDToElement[el.ID] = el
	s.IDToFrame[el.ID] = frame
	s.IDToCSS[el.ID] = css
}

// Element returns the metadata recorded for id.
func (s *Snapshot) Element(id string) (ElementMeta, bool) {
	el, ok := s.IDToElement[id]
	return el, ok
}

// Selector builds the css selector that addresses an element stamped by the scraper.
func Selector(idAttr, id string) string {
	return fmt.Sprintf("[%s='%s']", idAttr, id)
}

// Load reads a JSON encoded snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Snapshot, error) {
	s := New("")
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.IDToElement == nil || s.IDToFrame == nil || s.IDToCSS == nil {
		return nil, fmt.Errorf("decode snapshot: missing id_to_element, id_to_frame or id_to_css")
	}
	return s, nil
}

// Save writes the snapshot as indented JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// String renders the snapshot as a compact listing, ordered by element id.
func (s *Snapshot) String() string {
	ids := make([]string, 0, len(s.IDToElement))
	for id := range s.IDToElement {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nELEMENTS:\n", s.URL)
	for _, id := range ids {
		el := s.IDToElement[id]
		fmt.Fprintf(&b, "%s) tag=%s frame=%s", id, el.TagName, s.IDToFrame[id])
		if len(el.Options) > 0 {
			fmt.Fprintf(&b, " options=%d", len(el.Options))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
