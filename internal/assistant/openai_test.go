package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeProvider speaks just enough of the completions protocol for tests.
func fakeProvider(t *testing.T, status int, reply string, capture *[]map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if capture != nil {
			var req struct {
				Messages []map[string]string `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			*capture = req.Messages
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestCompleteReturnsProviderReply(t *testing.T) {
	server := fakeProvider(t, http.StatusOK, "  hello there  ", nil)
	defer server.Close()

	svc := NewService("test-key", server.URL, "gpt-4o-mini")
	got := svc.Complete(context.Background(), "hi", nil, "")
	if got != "hello there" {
		t.Fatalf("expected trimmed reply, got %q", got)
	}
}

func TestCompleteThreadsHistoryAndContext(t *testing.T) {
	var captured []map[string]string
	server := fakeProvider(t, http.StatusOK, "ok", &captured)
	defer server.Close()

	svc := NewService("test-key", server.URL, "gpt-4o-mini")
	history := []Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	svc.Complete(context.Background(), "second question", history, "grocery list: eggs")

	if len(captured) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(captured))
	}
	if captured[0]["role"] != "system" || !strings.Contains(captured[0]["content"], "grocery list: eggs") {
		t.Errorf("system message should carry note context, got %+v", captured[0])
	}
	if captured[1]["content"] != "first question" || captured[2]["content"] != "first answer" {
		t.Errorf("history not threaded in order: %+v", captured[1:3])
	}
	if captured[2]["role"] != "assistant" {
		t.Errorf("assistant history role lost, got %q", captured[2]["role"])
	}
	if captured[3]["role"] != "user" || captured[3]["content"] != "second question" {
		t.Errorf("final user message wrong: %+v", captured[3])
	}
}

func TestCompleteCapsNoteContext(t *testing.T) {
	var captured []map[string]string
	server := fakeProvider(t, http.StatusOK, "ok", &captured)
	defer server.Close()

	svc := NewService("test-key", server.URL, "gpt-4o-mini")
	huge := strings.Repeat("x", contextLimit*2) + "TAIL"
	svc.Complete(context.Background(), "hi", nil, huge)

	system := captured[0]["content"]
	if len(system) > contextLimit+len(systemPrompt)+100 {
		t.Fatalf("system prompt not capped, %d bytes", len(system))
	}
	if !strings.HasSuffix(system, "TAIL") {
		t.Error("cap must keep the newest bytes of the context")
	}
}

func TestCompleteUnconfigured(t *testing.T) {
	svc := NewService("", "", "gpt-4o-mini")
	got := svc.Complete(context.Background(), "hi", nil, "")
	if !strings.HasPrefix(got, "[assistant not configured]") {
		t.Fatalf("expected inline notice, got %q", got)
	}
	if svc.IsConfigured() {
		t.Error("service without key must report unconfigured")
	}
}

func TestCompleteProviderFailureIsInline(t *testing.T) {
	server := fakeProvider(t, http.StatusInternalServerError, "", nil)
	defer server.Close()

	svc := NewService("test-key", server.URL, "gpt-4o-mini")
	got := svc.Complete(context.Background(), "hi", nil, "")
	if !strings.HasPrefix(got, "[assistant error]") {
		t.Fatalf("expected inline error, got %q", got)
	}
}
