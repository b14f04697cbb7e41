package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

// newTestServer returns a chat-completion stub that answers every
// request with the given message content
func newTestServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("missing Authorization header")
		}

		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}
		resp := map[string]interface{}{
			"id": "resp-1",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(baseURL string) *Client {
	client := NewClient()
	client.Configure("custom", "test-key", "test-model", baseURL, "Sam")
	return client
}

func testMessage() mailbox.RawMessage {
	return mailbox.RawMessage{
		ID:      "m1",
		Sender:  "carol@client.com",
		Subject: "Contract review",
		Body:    "Could you look at the attached contract before Friday?",
	}
}

func TestClassify_NotConfigured(t *testing.T) {
	client := NewClient()
	_, err := client.Classify(context.Background(), testMessage())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestClassify_NoReplySenderSkipsAPICall(t *testing.T) {
	// Server that fails the test if it is ever reached
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API was called for a no-reply sender")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), mailbox.RawMessage{
		ID:     "m2",
		Sender: "no-reply@service.io",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Category != models.CategoryNewsletter {
		t.Errorf("Category = %v, want Newsletter", result.Category)
	}
	if result.IsFallback {
		t.Error("no-reply short-circuit must not be marked as fallback")
	}
}

func TestClassify_ParsesJSONResponse(t *testing.T) {
	content := `{"category":"Important","priority":"High","reply":"Happy to review it. I will send notes by Thursday.","reasoning":"Deadline-bound work request","needs_reply":true}`
	server := newTestServer(t, http.StatusOK, content)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Category != models.CategoryImportant {
		t.Errorf("Category = %v, want Important", result.Category)
	}
	if result.Priority != models.PriorityHigh {
		t.Errorf("Priority = %v, want High", result.Priority)
	}
	if !result.NeedsReply {
		t.Error("NeedsReply = false, want true")
	}
	if result.IsFallback {
		t.Error("IsFallback = true, want false for a live classification")
	}
}

func TestClassify_ParsesJSONWrappedInProse(t *testing.T) {
	content := "Here is my analysis:\n```json\n" +
		`{"category":"Newsletter","priority":"Low","reply":"No reply needed","reasoning":"Marketing blast"}` +
		"\n```\nLet me know if you need anything else."
	server := newTestServer(t, http.StatusOK, content)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Category != models.CategoryNewsletter {
		t.Errorf("Category = %v, want Newsletter", result.Category)
	}
	if result.NeedsReply {
		t.Error("NeedsReply = true, want false when reply is 'No reply needed'")
	}
}

func TestClassify_TextFormatFallbackParsing(t *testing.T) {
	content := "Category: Personal\nPriority: Medium\nReply: Thanks for reaching out, talk soon!"
	server := newTestServer(t, http.StatusOK, content)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Category != models.CategoryPersonal {
		t.Errorf("Category = %v, want Personal", result.Category)
	}
	if result.Reply != "Thanks for reaching out, talk soon!" {
		t.Errorf("Reply = %q", result.Reply)
	}
}

func TestClassify_InvalidCategoryIsAnError(t *testing.T) {
	content := `{"category":"Mystery","priority":"High","reply":"x","reasoning":"y"}`
	server := newTestServer(t, http.StatusOK, content)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), testMessage())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestClassify_UpstreamErrorStatus(t *testing.T) {
	server := newTestServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), testMessage())
	if !errors.Is(err, ErrAPICallFailed) {
		t.Errorf("error = %v, want ErrAPICallFailed", err)
	}
}

func TestClassify_ContextCancellation(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"category":"Personal","priority":"Low","reply":"ok"}`)
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Classify(ctx, testMessage())
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestPayloadToResult_DefaultsPriorityWhenInvalid(t *testing.T) {
	result, err := payloadToResult(classificationPayload{
		Category: "Important",
		Priority: "Urgent-ish",
		Reply:    "on it",
	})
	if err != nil {
		t.Fatalf("payloadToResult: %v", err)
	}
	if result.Priority != models.PriorityMedium {
		t.Errorf("Priority = %v, want Medium default", result.Priority)
	}
}
