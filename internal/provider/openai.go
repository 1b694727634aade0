package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/flickerlabs/flicker-relay/internal/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAI talks to the OpenAI chat completions and image generation APIs.
// Any OpenAI-compatible gateway works through the base-url override.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client
}

// NewOpenAI constructs an OpenAI adapter.
func NewOpenAI(cfg config.ProviderConfig) *OpenAI {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the adapter name.
func (o *OpenAI) Name() string { return "openai" }

type chatMessagePart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateText calls the chat completions endpoint.
func (o *OpenAI) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	messages := []chatMessage{{Role: "system", Content: req.SystemPrompt}}

	if req.Image != nil {
		dataURL := "data:" + req.Image.MIMEType + ";base64," +
			base64.StdEncoding.EncodeToString(req.Image.Data)
		parts := []chatMessagePart{}
		if req.Message != "" {
			parts = append(parts, chatMessagePart{Type: "text", Text: req.Message})
		}
		imagePart := chatMessagePart{Type: "image_url"}
		imagePart.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: dataURL}
		parts = append(parts, imagePart)
		messages = append(messages, chatMessage{Role: "user", Content: parts})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.Message})
	}

	body := chatCompletionRequest{Model: o.model, Messages: messages}

	var out chatCompletionResponse
	if err := o.post(ctx, o.baseURL+"/v1/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", &Error{Provider: o.Name(), Message: "empty choices in response"}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type imageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage calls the image generations endpoint and returns the first
// image's bytes.
func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body := imageGenerationRequest{
		Model:          o.imageModel,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}

	var out imageGenerationResponse
	if err := o.post(ctx, o.baseURL+"/v1/images/generations", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, &Error{Provider: o.Name(), Message: "no images were generated"}
	}
	data, errDecode := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if errDecode != nil {
		return nil, &Error{Provider: o.Name(), Message: "malformed image payload: " + errDecode.Error()}
	}
	return data, nil
}

func (o *OpenAI) post(ctx context.Context, url string, in any, out any) error {
	payload, errMarshal := json.Marshal(in)
	if errMarshal != nil {
		return &Error{Provider: o.Name(), Message: "encode request: " + errMarshal.Error()}
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errReq != nil {
		return &Error{Provider: o.Name(), Message: "build request: " + errReq.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, errDo := o.httpClient.Do(httpReq)
	if errDo != nil {
		return &Error{Provider: o.Name(), Message: errDo.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if errRead != nil {
		return &Error{Provider: o.Name(), StatusCode: resp.StatusCode, Message: "read response: " + errRead.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Provider: o.Name(), StatusCode: resp.StatusCode, Message: truncateBody(data)}
	}
	if errUnmarshal := json.Unmarshal(data, out); errUnmarshal != nil {
		return &Error{Provider: o.Name(), StatusCode: resp.StatusCode, Message: "decode response: " + errUnmarshal.Error()}
	}
	return nil
}
