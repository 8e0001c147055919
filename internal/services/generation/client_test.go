package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loom/internal/ratelimit"
	"loom/internal/services"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func TestClientGenerateReturnsCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != "demo-model" {
			t.Errorf("unexpected model %q", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" || payload.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", payload.Messages)
		}
		if err := json.NewEncoder(w).Encode(completionBody("Narration script text.")); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.Generate(context.Background(), Prompt{
		System:      "You write scripts.",
		User:        "Write one sentence.",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if content != "Narration script text." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientGenerateStructuredCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionBody("```json\n{\"key_points\":[\"a\",\"b\"]}\n```")); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var parsed struct {
		KeyPoints []string `json:"key_points"`
	}
	if err := client.GenerateStructured(context.Background(), Prompt{User: "points"}, &parsed); err != nil {
		t.Fatalf("GenerateStructured returned error: %v", err)
	}
	if len(parsed.KeyPoints) != 2 || parsed.KeyPoints[0] != "a" {
		t.Fatalf("unexpected payload %+v", parsed)
	}
}

func TestClientGenerateStructuredParseFailureIncludesSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionBody("Sure! Here are the key points you asked for.")); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var parsed struct {
		KeyPoints []string `json:"key_points"`
	}
	err := client.GenerateStructured(context.Background(), Prompt{User: "points"}, &parsed)
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestClientGenerateHTTPFailureClassifiedExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryMaxAttempts(1),
	)
	_, err := client.Generate(context.Background(), Prompt{User: "hi"})
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http 500") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestClientGenerateTimeoutClassified(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithRetryMaxAttempts(1),
	)
	_, err := client.Generate(context.Background(), Prompt{User: "hi"})
	if err == nil {
		t.Fatal("expected generate to time out")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClientGenerateRecordsReportedTokenUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := completionBody("done")
		payload["usage"] = map[string]any{"prompt_tokens": 100, "completion_tokens": 23, "total_tokens": 123}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	budget := ratelimit.New(
		ratelimit.Config{RequestsPerMinute: 15, DailyTokenLimit: 1_000_000},
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithBudget(budget),
	)
	if _, err := client.Generate(context.Background(), Prompt{User: "hi"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	usage := budget.Snapshot()
	if usage.TokensUsed != 123 {
		t.Fatalf("expected 123 tokens recorded, got %d", usage.TokensUsed)
	}
	if usage.RequestCount != 1 {
		t.Fatalf("expected 1 request recorded, got %d", usage.RequestCount)
	}
}

func TestClientGenerateEstimatesUsageWhenAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionBody("a reasonably long completion used for the estimate")); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	budget := ratelimit.New(
		ratelimit.Config{RequestsPerMinute: 15, DailyTokenLimit: 1_000_000},
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithBudget(budget),
	)
	if _, err := client.Generate(context.Background(), Prompt{User: "tell me something long enough"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if usage := budget.Snapshot(); usage.TokensUsed <= 0 {
		t.Fatalf("expected estimated token usage, got %d", usage.TokensUsed)
	}
}

func TestClientGenerateStopPolicyShortCircuits(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(completionBody("ignored"))
	}))
	defer server.Close()

	budget := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 15,
		DailyTokenLimit:   100,
		Policy:            ratelimit.PolicyStop,
	})
	budget.RecordUsage(100)

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithBudget(budget),
	)
	_, err := client.Generate(context.Background(), Prompt{User: "hi"})
	if !errors.Is(err, services.ErrRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no HTTP calls once budget is spent, got %d", calls)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionBody(`{"ok":true}`)); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completionBody("recovered"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	content, err := client.Generate(context.Background(), Prompt{User: "hi"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		Concepts []string `json:"concepts"`
	}
	payload := "Here is the JSON you requested: {\"concepts\":[\"gravity\",\"orbits\"]} hope that helps"
	if err := DecodeModelJSON(payload, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	if len(parsed.Concepts) != 2 || parsed.Concepts[1] != "orbits" {
		t.Fatalf("unexpected payload %+v", parsed)
	}
}
