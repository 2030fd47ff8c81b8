package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
	MaxHistory    int
}

// Manager builds the study prompts and turns provider output into typed
// results. Provider failures come back wrapped in ErrServiceUnavailable and
// unusable output in ErrParse.
type Manager struct {
	generator IGenerator
	chatter   IChatter
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, chatter IChatter, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		chatter:   chatter,
		cfg:       cfg,
	}
}

// ExtractTerms asks for the important technical terms of a lecture excerpt.
func (m *Manager) ExtractTerms(ctx context.Context, text string) ([]TermItem, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("%w: generator not configured", appErr.ErrServiceUnavailable)
	}
	prompt := fmt.Sprintf(`You are a university lecture tutor.
Read the lecture material below, pick out the important technical terms and
explain each one so that a student can understand it.
- Use the same language as the material.
- Respond with a JSON array only. No extra text.
- Each element must be {"term": "...", "explanation": "...", "context": "where or how the term is used in the material"}.

MATERIAL:
%s`, fence(m.Truncate(text)))
	out, err := m.call(ctx, func(ctx context.Context) (string, error) {
		return m.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	return ParseTermItems(out)
}

// ExplainTerms explains the given terms in the context of the lecture. It
// returns the raw reply next to the parsed items so callers can keep the
// exchange as chat history.
func (m *Manager) ExplainTerms(ctx context.Context, lecture string, terms []string) (string, []TermItem, error) {
	if m.generator == nil {
		return "", nil, fmt.Errorf("%w: generator not configured", appErr.ErrServiceUnavailable)
	}
	prompt := fmt.Sprintf(`You are a university lecture tutor.
Explain each of the following terms as they are used in the lecture material.
- Use the same language as the material.
- Respond with a JSON array only. No extra text.
- Each element must be {"term": "...", "explanation": "..."}.

TERMS:
%s

MATERIAL:
%s`, strings.Join(terms, "\n"), fence(m.Truncate(lecture)))
	out, err := m.call(ctx, func(ctx context.Context) (string, error) {
		return m.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return "", nil, err
	}
	items, err := ParseTermItems(out)
	if err != nil {
		return "", nil, err
	}
	return out, items, nil
}

// Chat answers a free-form question, replaying history as prior turns and
// the lecture text as the system instruction.
func (m *Manager) Chat(ctx context.Context, lecture string, history []Message, message string) (string, error) {
	if m.chatter == nil {
		return "", fmt.Errorf("%w: chatter not configured", appErr.ErrServiceUnavailable)
	}
	system := `You are a study assistant helping a student with a lecture.
Answer questions about the lecture material below. When the material does not
cover the question, say so and answer from general knowledge.
- Use the same language as the question.`
	if lecture = m.Truncate(lecture); strings.TrimSpace(lecture) != "" {
		system += "\n\nMATERIAL:\n" + fence(lecture)
	}
	if limit := m.cfg.MaxHistory; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return m.call(ctx, func(ctx context.Context) (string, error) {
		return m.chatter.Chat(ctx, system, history, message)
	})
}

// Truncate cuts text to the configured number of characters.
func (m *Manager) Truncate(text string) string {
	limit := m.cfg.MaxInputChars
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func (m *Manager) MaxHistory() int {
	return m.cfg.MaxHistory
}

func (m *Manager) call(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := fn(ctx)
	if err != nil {
		if errors.Is(err, appErr.ErrServiceUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", appErr.ErrServiceUnavailable, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty ai response", appErr.ErrParse)
	}
	return text, nil
}

func fence(text string) string {
	return "```\n" + text + "\n```"
}
