package scriptwriter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIWriterParsesScript(t *testing.T) {
	script := map[string]any{
		"title": "Ice Cream Gate",
		"panels": []map[string]any{
			{"panel": 1, "character": "anchor", "scene_prompt": "desk scene", "dialogue": "Breaking news, folks, it melted!"},
			{"panel": 2, "character": "politician", "scene_prompt": "podium scene", "dialogue": "I never promised sprinkles at all."},
		},
	}
	content, _ := json.Marshal(script)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %#v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": string(content)}},
			},
		})
	}))
	defer srv.Close()

	w, err := NewOpenAIWriter(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIWriter: %v", err)
	}
	got, err := w.WriteScript(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if got.Title != "Ice Cream Gate" || len(got.Panels) != 2 {
		t.Fatalf("script mismatch: %#v", got)
	}
	if got.Panels[1].ScenePrompt != "podium scene" {
		t.Fatalf("panel prompt mismatch: %q", got.Panels[1].ScenePrompt)
	}
}

func TestOpenAIWriterErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			},
		},
		{
			name: "content not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"choices": []map[string]any{
						{"message": map[string]any{"content": "sorry, I cannot do that"}},
					},
				})
			},
		},
		{
			name: "script without panels",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"choices": []map[string]any{
						{"message": map[string]any{"content": `{"title":"empty"}`}},
					},
				})
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			w, err := NewOpenAIWriter(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("NewOpenAIWriter: %v", err)
			}
			if _, err := w.WriteScript(context.Background(), sampleRequest()); err == nil {
				t.Fatal("WriteScript succeeded, want error")
			}
		})
	}
}
