package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello there  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL)
	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "be brief",
		History:      []Message{{Role: "assistant", Content: "hi"}},
		UserMessage:  "hello",
		Options:      Options{APIKey: "sk-test", Model: "gpt-test", Temperature: 0.2},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
}

func TestOpenAIClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL).Complete(context.Background(), Request{
		UserMessage: "hi",
		Options:     Options{APIKey: "k"},
	})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	_, err := NewOpenAIClient("http://127.0.0.1:0").Complete(context.Background(), Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL).Complete(context.Background(), Request{
		UserMessage: "hi",
		Options:     Options{APIKey: "k", Timeout: 50 * time.Millisecond},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"type\":\"help\"}"}]}`))
	}))
	defer srv.Close()

	out, err := NewAnthropicClient(srv.URL).Complete(context.Background(), Request{
		SystemPrompt: "classify",
		UserMessage:  "help me",
		Options:      Options{APIKey: "key"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"type":"help"}`, out)
	assert.Equal(t, "classify", got.System)
	assert.Equal(t, anthropicModel, got.Model)
	require.Len(t, got.Messages, 1)
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient(srv.URL).Complete(context.Background(), Request{
		UserMessage: "x",
		Options:     Options{APIKey: "key"},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type stubClient struct {
	calls atomic.Int32
	out   string
	err   error
}

func (s *stubClient) Complete(ctx context.Context, req Request) (string, error) {
	s.calls.Add(1)
	return s.out, s.err
}

func TestRouter(t *testing.T) {
	openai := &stubClient{out: "from openai"}
	anthropic := &stubClient{out: "from anthropic"}

	r := NewRouter(domain.ProviderOpenAI)
	r.Register(domain.ProviderOpenAI, openai)
	r.Register(domain.ProviderAnthropic, anthropic)

	out, err := r.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from openai", out)

	out, err = r.Complete(context.Background(), Request{Options: Options{Provider: domain.ProviderAnthropic}})
	require.NoError(t, err)
	assert.Equal(t, "from anthropic", out)

	_, err = r.Complete(context.Background(), Request{Options: Options{Provider: "gemini"}})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestGuard_OpensPerCredential(t *testing.T) {
	failing := &stubClient{err: errors.New("boom")}
	g := NewGuard(failing, GuardConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)

	bad := Request{Options: Options{APIKey: "bad-key"}}
	for i := 0; i < 2; i++ {
		_, err := g.Complete(context.Background(), bad)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := g.Complete(context.Background(), bad)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), failing.calls.Load())

	// another tenant's key has its own breaker
	_, err = g.Complete(context.Background(), Request{Options: Options{APIKey: "other-key"}})
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), failing.calls.Load())
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	ok := &stubClient{out: "ok"}
	g := NewGuard(ok, GuardConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)
	req := Request{Options: Options{APIKey: "k"}}

	_, err := g.Complete(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, req)
	require.Error(t, err)
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestOptionsTimeoutBounds(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Options{}.timeout())
	assert.Equal(t, MaxTimeout, Options{Timeout: time.Hour}.timeout())
	assert.Equal(t, 5*time.Second, Options{Timeout: 5 * time.Second}.timeout())
}
