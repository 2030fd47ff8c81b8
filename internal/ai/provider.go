package ai

import (
	"context"
	"fmt"
	"strings"

	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable is returned by providers that cannot make a call at all,
// e.g. because no API key is configured.
var ErrUnavailable = fmt.Errorf("%w: api key not configured", appErr.ErrServiceUnavailable)

type Message struct {
	Role    string
	Content string
}

type Request struct {
	System  string
	History []Message
	Prompt  string
	// JSON asks the provider for a JSON response body when it supports it.
	JSON bool
}

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, req *Request) (string, error)
}

// IGenerator answers a single prompt.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IChatter answers a prompt given a system instruction and prior turns.
type IChatter interface {
	Chat(ctx context.Context, system string, history []Message, prompt string) (string, error)
}

type client struct {
	provider IProvider
	model    string
}

func NewGenerator(p IProvider, model string) IGenerator {
	return &client{provider: p, model: model}
}

func NewChatter(p IProvider, model string) IChatter {
	return &client{provider: p, model: model}
}

func (c *client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.provider.Generate(ctx, c.model, &Request{Prompt: prompt, JSON: true})
}

func (c *client) Chat(ctx context.Context, system string, history []Message, prompt string) (string, error) {
	return c.provider.Generate(ctx, c.model, &Request{System: system, History: history, Prompt: prompt})
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}
