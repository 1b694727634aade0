package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flickerlabs/flicker-relay/internal/config"
)

func geminiConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Type:       config.ProviderGemini,
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "gemini-2.5-flash",
		ImageModel: "imagen-3.0-generate-002",
		Timeout:    5 * time.Second,
	}
}

func openaiConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Type:       config.ProviderOpenAI,
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "gpt-4o-mini",
		ImageModel: "dall-e-3",
		Timeout:    5 * time.Second,
	}
}

func TestNew_SelectsAdapter(t *testing.T) {
	p, errNew := New(geminiConfig(""))
	if errNew != nil {
		t.Fatalf("new gemini: %v", errNew)
	}
	if p.Name() != "gemini" {
		t.Fatalf("expected gemini, got %s", p.Name())
	}

	p, errNew = New(openaiConfig(""))
	if errNew != nil {
		t.Fatalf("new openai: %v", errNew)
	}
	if p.Name() != "openai" {
		t.Fatalf("expected openai, got %s", p.Name())
	}

	if _, errNew = New(config.ProviderConfig{Type: "unknown"}); errNew == nil {
		t.Fatal("expected error for unknown provider type")
	}
}

func TestGemini_GenerateText(t *testing.T) {
	var gotPath string
	var gotBody generateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if errDecode := json.NewDecoder(r.Body).Decode(&gotBody); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" hello there "}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(geminiConfig(srv.URL))
	reply, errGen := g.GenerateText(context.Background(), TextRequest{
		SystemPrompt: "You are helpful.",
		Message:      "hi",
	})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if reply != "hello there" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", gotBody)
	}
	if !strings.Contains(gotBody.Contents[0].Parts[0].Text, "User: hi") {
		t.Fatalf("expected system prompt and user message combined, got %q", gotBody.Contents[0].Parts[0].Text)
	}
}

func TestGemini_GenerateText_AttachesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		parts := body.Contents[0].Parts
		if len(parts) != 2 || parts[1].InlineData == nil {
			t.Errorf("expected inline image part, got %+v", parts)
		} else if parts[1].InlineData.MIMEType != "image/jpeg" {
			t.Errorf("expected image/jpeg, got %s", parts[1].InlineData.MIMEType)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(geminiConfig(srv.URL))
	_, errGen := g.GenerateText(context.Background(), TextRequest{
		SystemPrompt: "sys",
		Message:      "what is this",
		Image:        &ImagePayload{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
}

func TestGemini_GenerateImage(t *testing.T) {
	imageBytes := []byte{0xff, 0xd8, 0xff, 0xe0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "imagen-3.0-generate-002:predict") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		resp := map[string]any{
			"predictions": []map[string]string{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString(imageBytes)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := NewGemini(geminiConfig(srv.URL))
	got, errGen := g.GenerateImage(context.Background(), "a lighthouse")
	if errGen != nil {
		t.Fatalf("generate image: %v", errGen)
	}
	if string(got) != string(imageBytes) {
		t.Fatalf("expected decoded image bytes, got %v", got)
	}
}

func TestGemini_UpstreamErrorMapsToProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGemini(geminiConfig(srv.URL))
	_, errGen := g.GenerateText(context.Background(), TextRequest{Message: "hi"})
	var provErr *Error
	if !errors.As(errGen, &provErr) {
		t.Fatalf("expected *Error, got %T", errGen)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", provErr.StatusCode)
	}
}

func TestGemini_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := geminiConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	g := NewGemini(cfg)

	_, errGen := g.GenerateText(context.Background(), TextRequest{Message: "hi"})
	var provErr *Error
	if !errors.As(errGen, &provErr) {
		t.Fatalf("expected *Error on timeout, got %T (%v)", errGen, errGen)
	}
}

func TestOpenAI_GenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", body.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" hi back "}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(openaiConfig(srv.URL))
	reply, errGen := o.GenerateText(context.Background(), TextRequest{SystemPrompt: "sys", Message: "hi"})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if reply != "hi back" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
}

func TestOpenAI_GenerateImage(t *testing.T) {
	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body imageGenerationRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ResponseFormat != "b64_json" || body.N != 1 {
			t.Errorf("unexpected request %+v", body)
		}
		resp := map[string]any{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(imageBytes)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	o := NewOpenAI(openaiConfig(srv.URL))
	got, errGen := o.GenerateImage(context.Background(), "a lighthouse")
	if errGen != nil {
		t.Fatalf("generate image: %v", errGen)
	}
	if string(got) != string(imageBytes) {
		t.Fatalf("expected decoded image bytes, got %v", got)
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(openaiConfig(srv.URL))
	_, errGen := o.GenerateText(context.Background(), TextRequest{Message: "hi"})
	var provErr *Error
	if !errors.As(errGen, &provErr) {
		t.Fatalf("expected *Error for empty choices, got %T", errGen)
	}
}
