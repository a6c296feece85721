package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
)

// Evaluator runs a JS function in a document. playwright.Page and
// playwright.Frame both satisfy it.
type Evaluator interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// select2OptionsScript reads the options rendered in the open select2 panel
// of the document that owns element.
const select2OptionsScript = `(element) => {
	const doc = (element && element.ownerDocument) || document;
	const drop = doc.querySelector("#select2-drop");
	if (!drop) return [];
	const out = [];
	const nodes = drop.querySelectorAll("li[role='option']");
	for (let i = 0; i < nodes.length; i++) {
		const text = (nodes[i].innerText || nodes[i].textContent || "").replace(/\s+/g, " ").trim();
		out.push({optionIndex: i, text});
	}
	return out;
}`

// ReadSelect2Options returns the options of the select2 panel opened by
// element, indexed in render order. The scraper and the dropdown driver share
// it so indices agree between scrape time and interaction time.
func ReadSelect2Options(ctx context.Context, frame Evaluator, element interface{}) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := frame.Evaluate(select2OptionsScript, element)
	if err != nil {
		return nil, fmt.Errorf("playwright: %w", err)
	}
	var opts []Option
	if err := decodeEvaluated(val, &opts); err != nil {
		return nil, fmt.Errorf("decode select2 options: %w", err)
	}
	return opts, nil
}

// decodeEvaluated converts the loosely typed value returned by Evaluate into out.
func decodeEvaluated(val interface{}, out any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
