package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/polzovatel/webeye/internal/tools"
)

// step is one tool call of a steps file:
//
//	[{"tool": "click", "input": {"element_id": "12"}}]
type step struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

func loadSteps(path string) ([]step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	return parseSteps(data)
}

func parseSteps(data []byte) ([]step, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var steps []step
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	for i, s := range steps {
		if strings.TrimSpace(s.Tool) == "" {
			return nil, fmt.Errorf("step %d: tool required", i+1)
		}
		if s.Input == nil {
			steps[i].Input = map[string]any{}
		}
	}
	return steps, nil
}

// runSteps invokes steps in order. With keepGoing a failed step is logged and
// the run continues; the joined errors are returned at the end.
func runSteps(ctx context.Context, tb tools.Toolbox, steps []step, keepGoing bool) error {
	var errs []error
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := tb.Invoke(ctx, s.Tool, s.Input)
		if err != nil {
			log.Error().Err(err).Int("step", i+1).Str("tool", s.Tool).Msg("step failed")
			if !keepGoing {
				return fmt.Errorf("step %d (%s): %w", i+1, s.Tool, err)
			}
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, s.Tool, err))
			continue
		}
		log.Info().Int("step", i+1).Str("tool", s.Tool).Msg("step done")
		fmt.Println(res.Observation)
	}
	return errors.Join(errs...)
}
