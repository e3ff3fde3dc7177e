package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"well-go/internal/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompleter_Complete(t *testing.T) {
	t.Run("returns first choice content", func(t *testing.T) {
		var gotAuth, gotPath string
		var gotReq chatRequest
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotReq)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"choices":[{"message":{"content":"{\"insights\":[\"a\"]}"},"finish_reason":"stop"}]}`)
		})

		c := NewOpenAICompleter(srv.URL+"/v1/", "secret", "test-model", time.Second)
		got, err := c.Complete(context.Background(), "how am I doing?")
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got != `{"insights":["a"]}` {
			t.Errorf("Complete() = %q", got)
		}
		if gotAuth != "Bearer secret" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
		}
		if gotPath != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", gotPath)
		}
		if gotReq.Model != "test-model" {
			t.Errorf("model = %q, want test-model", gotReq.Model)
		}
		if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "how am I doing?" {
			t.Errorf("messages = %+v, want system and user prompt", gotReq.Messages)
		}
	})

	t.Run("reports api error message", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
		})

		c := NewOpenAICompleter(srv.URL, "", "m", time.Second)
		_, err := c.Complete(context.Background(), "p")
		if err == nil || !strings.Contains(err.Error(), "rate limited") {
			t.Fatalf("Complete() error = %v, want rate limited", err)
		}
	})

	t.Run("fails on empty choices", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[]}`)
		})

		c := NewOpenAICompleter(srv.URL, "", "m", time.Second)
		if _, err := c.Complete(context.Background(), "p"); err == nil {
			t.Fatal("Complete() expected error for empty choices")
		}
	})

	t.Run("fails on malformed body", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `not json`)
		})

		c := NewOpenAICompleter(srv.URL, "", "m", time.Second)
		if _, err := c.Complete(context.Background(), "p"); err == nil {
			t.Fatal("Complete() expected error for malformed body")
		}
	})

	t.Run("honours context deadline", func(t *testing.T) {
		release := make(chan struct{})
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
		})
		defer close(release)

		c := NewOpenAICompleter(srv.URL, "", "m", time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		if _, err := c.Complete(ctx, "p"); err == nil {
			t.Fatal("Complete() expected timeout error")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("Complete() took %v, want it bounded by the context deadline", elapsed)
		}
	})

	t.Run("returns immediately for cancelled context", func(t *testing.T) {
		c := NewOpenAICompleter("http://127.0.0.1:1", "", "m", time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := c.Complete(ctx, "p"); err != context.Canceled {
			t.Errorf("Complete() error = %v, want context.Canceled", err)
		}
	})

	t.Run("requires model", func(t *testing.T) {
		c := NewOpenAICompleter("http://127.0.0.1:1", "", "", time.Second)
		if _, err := c.Complete(context.Background(), "p"); err == nil {
			t.Fatal("Complete() expected error without model")
		}
	})
}

func TestNewCompleterFromConfig(t *testing.T) {
	t.Run("none returns nil completer", func(t *testing.T) {
		got, err := NewCompleterFromConfig(config.AIConfig{Type: "none"})
		if err != nil {
			t.Fatalf("NewCompleterFromConfig() error = %v", err)
		}
		if got != nil {
			t.Errorf("NewCompleterFromConfig() = %T, want nil", got)
		}
	})

	t.Run("openai", func(t *testing.T) {
		got, err := NewCompleterFromConfig(config.AIConfig{Type: "openai", Model: "gpt-4o-mini"})
		if err != nil {
			t.Fatalf("NewCompleterFromConfig() error = %v", err)
		}
		c, ok := got.(*OpenAICompleter)
		if !ok {
			t.Fatalf("NewCompleterFromConfig() = %T, want *OpenAICompleter", got)
		}
		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want default", c.baseURL)
		}
	})

	t.Run("openai without model", func(t *testing.T) {
		if _, err := NewCompleterFromConfig(config.AIConfig{Type: "openai"}); err == nil {
			t.Fatal("NewCompleterFromConfig() expected error without model")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewCompleterFromConfig(config.AIConfig{Type: "magic"}); err == nil {
			t.Fatal("NewCompleterFromConfig() expected error for unknown type")
		}
	})
}
