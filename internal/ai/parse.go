package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/v0xg/formpilot/internal/executor"
)

// locateAnswer is the model's reply to a locate prompt
type locateAnswer struct {
	Selector string `json:"selector"`
	Reason   string `json:"reason"`
}

// assertAnswer is the model's reply to an assert prompt
type assertAnswer struct {
	Satisfied bool   `json:"satisfied"`
	Reason    string `json:"reason"`
}

// parseActionsJSON extracts and parses a JSON array from a response that may contain surrounding text
func parseActionsJSON(response string) ([]executor.Action, error) {
	var actions []executor.Action
	if err := parseJSON(response, '[', ']', &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// parseJSON decodes the first balanced open...close span of response into v
func parseJSON(response string, open, close byte, v any) error {
	// First try direct parsing
	if err := json.Unmarshal([]byte(response), v); err == nil {
		return nil
	}

	start := strings.IndexByte(response, open)
	if start == -1 {
		return fmt.Errorf("no JSON %c...%c found in response", open, close)
	}

	// Find matching closing bracket, skipping string contents
	depth := 0
	inString, escaped := false, false
	end := -1
	for i := start; i < len(response) && end == -1; i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return fmt.Errorf("no matching closing bracket found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), v); err != nil {
		return fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return nil
}
