package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flickerlabs/flicker-relay/internal/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini talks to the Google Generative Language API: generateContent for
// chat and the Imagen predict endpoint for image generation.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client
}

// NewGemini constructs a Gemini adapter.
func NewGemini(cfg config.ProviderConfig) *Gemini {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &Gemini{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the adapter name.
func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText calls the generateContent endpoint.
func (g *Gemini) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	parts := make([]geminiPart, 0, 2)
	if req.Message != "" {
		parts = append(parts, geminiPart{Text: req.SystemPrompt + "\n\nUser: " + req.Message})
	} else {
		parts = append(parts, geminiPart{Text: req.SystemPrompt})
	}
	if req.Image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MIMEType: req.Image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}})
	}

	body := generateContentRequest{Contents: []geminiContent{{Parts: parts}}}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	var out generateContentResponse
	if err := g.post(ctx, url, body, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Provider: g.Name(), Message: "empty candidates in response"}
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}

type imagenRequest struct {
	Instances []struct {
		Prompt string `json:"prompt"`
	} `json:"instances"`
	Parameters struct {
		SampleCount int `json:"sampleCount"`
	} `json:"parameters"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
}

// GenerateImage calls the Imagen predict endpoint and returns the first
// generated image's bytes.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	var body imagenRequest
	body.Instances = append(body.Instances, struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt})
	body.Parameters.SampleCount = 1

	url := fmt.Sprintf("%s/v1beta/models/%s:predict?key=%s", g.baseURL, g.imageModel, g.apiKey)

	var out imagenResponse
	if err := g.post(ctx, url, body, &out); err != nil {
		return nil, err
	}
	if len(out.Predictions) == 0 {
		return nil, &Error{Provider: g.Name(), Message: "no images were generated"}
	}
	data, errDecode := base64.StdEncoding.DecodeString(out.Predictions[0].BytesBase64Encoded)
	if errDecode != nil {
		return nil, &Error{Provider: g.Name(), Message: "malformed image payload: " + errDecode.Error()}
	}
	return data, nil
}

func (g *Gemini) post(ctx context.Context, url string, in any, out any) error {
	payload, errMarshal := json.Marshal(in)
	if errMarshal != nil {
		return &Error{Provider: g.Name(), Message: "encode request: " + errMarshal.Error()}
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errReq != nil {
		return &Error{Provider: g.Name(), Message: "build request: " + errReq.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, errDo := g.httpClient.Do(httpReq)
	if errDo != nil {
		return &Error{Provider: g.Name(), Message: errDo.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if errRead != nil {
		return &Error{Provider: g.Name(), StatusCode: resp.StatusCode, Message: "read response: " + errRead.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Provider: g.Name(), StatusCode: resp.StatusCode, Message: truncateBody(data)}
	}
	if errUnmarshal := json.Unmarshal(data, out); errUnmarshal != nil {
		return &Error{Provider: g.Name(), StatusCode: resp.StatusCode, Message: "decode response: " + errUnmarshal.Error()}
	}
	return nil
}

// truncateBody bounds upstream error bodies carried into logs.
func truncateBody(data []byte) string {
	const max = 512
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max]
	}
	return s
}
