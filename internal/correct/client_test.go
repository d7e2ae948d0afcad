package correct

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completion(text string) string {
	return `{"choices": [{"message": {"content": ` + jsonString(text) + `}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCorrect(t *testing.T) {
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion("I go to school")))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL})
	got, err := client.Correct(context.Background(), "I goes to school")
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}

	if got != "I go to school" {
		t.Errorf("suggestion = %q, want %q", got, "I go to school")
	}
	if gotReq.Model != "o3-mini-2025-01-31" {
		t.Errorf("model = %q, want primary model", gotReq.Model)
	}
	if gotReq.MaxTokens != 100 {
		t.Errorf("max_tokens = %d, want 100", gotReq.MaxTokens)
	}
	if gotReq.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v, want single user message", gotReq.Messages)
	}
	content := gotReq.Messages[0].Content
	if !strings.Contains(content, "I goes to school") || !strings.Contains(content, `"No correction"`) {
		t.Errorf("prompt = %q, missing transcription or no-correction instruction", content)
	}
}

func TestCorrectSilenceSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL})
	got, err := client.Correct(context.Background(), "This audio might contain no speech.$")
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != NoCorrection {
		t.Errorf("suggestion = %q, want %q", got, NoCorrection)
	}
	if calls != 0 {
		t.Errorf("server called %d times for silent text, want 0", calls)
	}
}

func TestCorrectEmptyCompletion(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices": []}`},
		{"blank content", completion("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(Config{Endpoint: srv.URL})
			got, err := client.Correct(context.Background(), "hello there")
			if err != nil {
				t.Fatalf("Correct() error: %v", err)
			}
			if got != "(No Suggestion)" {
				t.Errorf("suggestion = %q, want (No Suggestion)", got)
			}
		})
	}
}

func TestCorrectFallbackModel(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		models = append(models, req.Model)

		if req.Model == "o3-mini-2025-01-31" {
			http.Error(w, `{"error": {"code": "model_not_found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion("I go to school")))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL})
	got, err := client.Correct(context.Background(), "I goes to school")
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != "I go to school" {
		t.Errorf("suggestion = %q, want fallback completion", got)
	}
	want := []string{"o3-mini-2025-01-31", "gpt-4"}
	if len(models) != 2 || models[0] != want[0] || models[1] != want[1] {
		t.Errorf("models tried = %v, want %v", models, want)
	}
}

func TestCorrectNonModelErrorAborts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error": {"code": "rate_limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL})
	_, err := client.Correct(context.Background(), "hello there")
	if !errors.Is(err, ErrCorrection) {
		t.Fatalf("error = %v, want ErrCorrection", err)
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (no fallback for non-model errors)", calls)
	}
}

func TestCorrectFallbackFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error": {"code": "model_not_found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL})
	_, err := client.Correct(context.Background(), "hello there")
	if !errors.Is(err, ErrCorrection) {
		t.Fatalf("error = %v, want ErrCorrection", err)
	}
	// exactly one fallback attempt, never a third
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}
