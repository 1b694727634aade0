// Package provider abstracts the upstream generative-AI backend behind a
// single interface so admission logic never knows which provider is
// configured. One adapter exists per backend, selected by configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/flickerlabs/flicker-relay/internal/config"
)

// ImagePayload is an inbound image attached to a text request, already
// re-encoded to a bounded-size JPEG by the imaging layer.
type ImagePayload struct {
	MIMEType string
	Data     []byte
}

// TextRequest is a chat generation request.
type TextRequest struct {
	SystemPrompt string
	Message      string
	Image        *ImagePayload
}

// Provider is the capability implemented by every backend adapter. Calls
// are single-attempt; retries are the caller's decision, and this layer
// makes none.
type Provider interface {
	// GenerateText produces a chat reply for the prompt, optionally grounded
	// on an attached image.
	GenerateText(ctx context.Context, req TextRequest) (string, error)

	// GenerateImage produces raw image bytes for the prompt.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)

	// Name returns the adapter name for logging.
	Name() string
}

// Error is returned for any upstream failure: transport errors, non-2xx
// statuses, and malformed payloads all map here so admission can translate
// them uniformly.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// New constructs the adapter selected by configuration.
func New(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case config.ProviderGemini:
		return NewGemini(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	}
	return nil, fmt.Errorf("provider: unknown type %q", cfg.Type)
}
