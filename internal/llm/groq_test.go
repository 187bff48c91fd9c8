package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqGenerateContent(t *testing.T) {
	t.Run("returns content and usage", func(t *testing.T) {
		var gotAuth string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			fmt.Fprint(w, `{"model":"llama-test","choices":[{"message":{"content":"  Water early.  "}}],
				"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
		}))
		defer srv.Close()

		gen := NewGroqClient("key", srv.URL)
		resp, err := gen.GenerateContent(context.Background(), "hello")
		if err != nil {
			t.Fatalf("GenerateContent returned error: %v", err)
		}
		if gotAuth != "Bearer key" {
			t.Errorf("Expected bearer auth, got %q", gotAuth)
		}
		if gotBody["model"] != groqModel {
			t.Errorf("Expected model %s, got %v", groqModel, gotBody["model"])
		}
		if resp.Content != "Water early." {
			t.Errorf("Expected trimmed content, got %q", resp.Content)
		}
		if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 3 || resp.Usage.Model != "llama-test" {
			t.Errorf("Unexpected usage %+v", resp.Usage)
		}
	})

	t.Run("surfaces api errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		if _, err := NewGroqClient("key", srv.URL).GenerateContent(context.Background(), "x"); err == nil {
			t.Fatal("Expected error for 429 response")
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		if _, err := NewGroqClient("key", srv.URL).GenerateContent(context.Background(), "x"); err == nil {
			t.Fatal("Expected error for empty choices")
		}
	})
}
