// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeranaias/quickr1/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", DefaultModel: "test-model"})
}

// =============================================================================
// PROMPT TESTS
// =============================================================================

func TestBuildPrompt(t *testing.T) {
	history := []*model.Message{
		model.NewUserMessage("Hi"),
		{Role: model.RoleAssistant, Content: "Hello! How can I help?"},
	}

	got := BuildPrompt(history, "Tell me a joke")
	want := "user: Hi\nassistant: Hello! How can I help?\nuser: Tell me a joke"
	if got != want {
		t.Errorf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	if got := BuildPrompt(nil, "Hello"); got != "user: Hello" {
		t.Errorf("BuildPrompt() = %q", got)
	}
}

func TestNewGenerateRequest_JSON(t *testing.T) {
	req := NewGenerateRequest("m", nil, "Hello")
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"model":"m","prompt":"user: Hello","stream":true}` {
		t.Errorf("body = %s", data)
	}
}

// =============================================================================
// GENERATE STREAM TESTS
// =============================================================================

func TestGenerateStream_ReturnsBody(t *testing.T) {
	var got GenerateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, "{\"response\":\"Hel\",\"done\":false}\n{\"response\":\"lo\",\"done\":false}\n")
	})

	body, err := client.GenerateStream(context.Background(), GenerateRequest{Prompt: "user: hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty body")
	}
	if got.Model != "test-model" {
		t.Errorf("Model = %q, want default model", got.Model)
	}
	if !got.Stream {
		t.Error("stream flag not forced on")
	}
}

func TestGenerateStream_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType ErrorType
		wantMsg  string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'x' not found"}`, ErrTypeModelNotFound, "model 'x' not found"},
		{"not found no body", http.StatusNotFound, ``, ErrTypeModelNotFound, "model not found"},
		{"server error body", http.StatusInternalServerError, `{"error":"out of memory"}`, ErrTypeInvalidResponse, "out of memory"},
		{"server error plain", http.StatusBadGateway, `oops`, ErrTypeInvalidResponse, "generate request failed: 502 Bad Gateway"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := client.GenerateStream(context.Background(), GenerateRequest{Model: "x"})
			var cerr *ClientError
			if !errors.As(err, &cerr) {
				t.Fatalf("error = %v, want *ClientError", err)
			}
			if cerr.Type != tc.wantType {
				t.Errorf("Type = %v, want %v", cerr.Type, tc.wantType)
			}
			if cerr.Error() != tc.wantMsg {
				t.Errorf("Error() = %q, want %q", cerr.Error(), tc.wantMsg)
			}
		})
	}
}

func TestGenerateStream_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url})
	_, err := client.GenerateStream(context.Background(), GenerateRequest{})
	if !IsNotRunning(err) {
		t.Errorf("IsNotRunning(%v) = false", err)
	}
}

func TestGenerateStream_Canceled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.GenerateStream(ctx, GenerateRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerateStream_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GenerateStream(ctx, GenerateRequest{})
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false", err)
	}
}

// =============================================================================
// HEALTH AND MODELS
// =============================================================================

func TestCheckRunning(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Ollama is running")
	})
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning: %v", err)
	}
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"deepseek-r1:1.5b","size":1117320000,"details":{"family":"qwen2"}}]}`)
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].Name != "deepseek-r1:1.5b" {
		t.Fatalf("models = %+v", models)
	}
	if models[0].Details.Family != "qwen2" {
		t.Errorf("Family = %q", models[0].Details.Family)
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2 KB"},
		{1536 * 1024, "1.5 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tc := range tests {
		m := ModelInfo{Size: tc.size}
		if got := m.FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), ErrTimeout)
	if !IsTimeout(wrapped) {
		t.Error("IsTimeout should see through wrapping")
	}
	if IsNotRunning(errors.New("plain")) {
		t.Error("plain error is not a not-running error")
	}
	if ErrTypeModelNotFound.String() != "model_not_found" {
		t.Errorf("String() = %q", ErrTypeModelNotFound.String())
	}
}
