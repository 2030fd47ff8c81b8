package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

type TermItem struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
	Context     string `json:"context,omitempty"`
}

type rawTermItem struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
	Definition  string `json:"definition"`
	Context     string `json:"context"`
}

var fenceRegex = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ParseTermItems reads a JSON array of term objects from model output. The
// array may be bare, wrapped in a ```json fence or surrounded by prose.
// "definition" is accepted in place of "explanation".
func ParseTermItems(output string) ([]TermItem, error) {
	candidate := strings.TrimSpace(output)
	if m := fenceRegex.FindStringSubmatch(output); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			candidate = inner
		}
	}
	var raw []rawTermItem
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		start := strings.Index(candidate, "[")
		end := strings.LastIndex(candidate, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no json array found", appErr.ErrParse)
		}
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrParse, err)
		}
	}
	items := make([]TermItem, 0, len(raw))
	for i, item := range raw {
		explanation := strings.TrimSpace(item.Explanation)
		if explanation == "" {
			explanation = strings.TrimSpace(item.Definition)
		}
		term := strings.TrimSpace(item.Term)
		if term == "" || explanation == "" {
			return nil, fmt.Errorf("%w: item %d missing term or explanation", appErr.ErrParse, i)
		}
		items = append(items, TermItem{
			Term:        term,
			Explanation: explanation,
			Context:     strings.TrimSpace(item.Context),
		})
	}
	return items, nil
}
