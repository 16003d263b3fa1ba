// Package ai wraps the chat-completion providers a tenant can configure.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

const (
	// DefaultTimeout bounds one completion when the tenant did not configure a timeout.
	DefaultTimeout = 15 * time.Second

	// MaxTimeout is the hard ceiling applied by the HTTP clients.
	MaxTimeout = 30 * time.Second

	defaultMaxTokens = 500
)

var (
	ErrMissingAPIKey       = errors.New("ai: api key not configured")
	ErrUnsupportedProvider = errors.New("ai: unsupported provider")
	ErrEmptyResponse       = errors.New("ai: empty completion")
)

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries the per-tenant credentials and sampling parameters.
type Options struct {
	Provider    domain.AIProvider
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OptionsFromSettings builds Options from the tenant's AI settings.
func OptionsFromSettings(s domain.AISettings) Options {
	return Options{
		Provider:    s.Provider,
		APIKey:      s.APIKey,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.Timeout,
	}
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	if o.Timeout > MaxTimeout {
		return MaxTimeout
	}
	return o.Timeout
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return o.MaxTokens
}

// Request is a single completion call.
type Request struct {
	SystemPrompt string
	History      []Message
	UserMessage  string
	Options      Options
}

func (r Request) messages() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	if r.UserMessage != "" {
		msgs = append(msgs, Message{Role: "user", Content: r.UserMessage})
	}
	return msgs
}

// Client is the completion provider used by the classifier and the free-text responder.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Router dispatches a request to the client registered for its provider.
type Router struct {
	clients  map[domain.AIProvider]Client
	fallback domain.AIProvider
}

// NewRouter creates a router; requests without a provider go to fallback.
func NewRouter(fallback domain.AIProvider) *Router {
	return &Router{clients: make(map[domain.AIProvider]Client), fallback: fallback}
}

// Register binds a client to a provider name.
func (r *Router) Register(provider domain.AIProvider, client Client) {
	r.clients[provider] = client
}

// Complete implements Client.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	provider := req.Options.Provider
	if provider == "" {
		provider = r.fallback
	}
	client, ok := r.clients[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	return client.Complete(ctx, req)
}
