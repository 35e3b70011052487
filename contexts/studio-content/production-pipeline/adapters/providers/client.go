package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"backlot/contexts/studio-content/production-pipeline/ports"
)

// Client talks to a Modal-style generation endpoint: one POST per asset,
// JSON request in, JSON result descriptor out. Errors come back classified
// so the pipeline can decide retryability.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type generationRequestBody struct {
	Prompt          string  `json:"prompt"`
	NegativePrompt  string  `json:"negative_prompt,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	FPS             int     `json:"fps,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
}

type generationResponseBody struct {
	AssetURL        string  `json:"asset_url"`
	ContentType     string  `json:"content_type"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Provider        string  `json:"provider"`
	Error           *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c Client) GenerateVideo(ctx context.Context, request ports.GenerationRequest) (ports.GenerationResult, error) {
	return c.post(ctx, "/v1/generate/video", request)
}

func (c Client) GenerateAudio(ctx context.Context, request ports.GenerationRequest) (ports.GenerationResult, error) {
	return c.post(ctx, "/v1/generate/audio", request)
}

func (c Client) GenerateImage(ctx context.Context, request ports.GenerationRequest) (ports.GenerationResult, error) {
	return c.post(ctx, "/v1/generate/image", request)
}

func (c Client) post(ctx context.Context, path string, request ports.GenerationRequest) (ports.GenerationResult, error) {
	body, err := json.Marshal(generationRequestBody{
		Prompt:          request.Prompt,
		NegativePrompt:  request.NegativePrompt,
		DurationSeconds: request.DurationSeconds,
		Width:           request.Width,
		Height:          request.Height,
		FPS:             request.FPS,
		Seed:            request.Seed,
	})
	if err != nil {
		return ports.GenerationResult{}, err
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return ports.GenerationResult{}, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	response, err := c.httpClient().Do(httpRequest)
	if err != nil {
		// Timeouts and transport failures follow the normal retry path.
		return ports.GenerationResult{}, &ports.ProviderError{
			Kind:    ports.ProviderErrorServerError,
			Message: err.Error(),
		}
	}
	defer func() { _ = response.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return ports.GenerationResult{}, &ports.ProviderError{
			Kind:    ports.ProviderErrorServerError,
			Message: err.Error(),
		}
	}

	if response.StatusCode != http.StatusOK {
		return ports.GenerationResult{}, classifyStatus(response.StatusCode, payload)
	}

	var decoded generationResponseBody
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ports.GenerationResult{}, &ports.ProviderError{
			Kind:    ports.ProviderErrorServerError,
			Message: "malformed provider response",
		}
	}
	if decoded.Error != nil {
		return ports.GenerationResult{}, &ports.ProviderError{
			Kind:    providerErrorKind(decoded.Error.Kind),
			Message: decoded.Error.Message,
		}
	}
	return ports.GenerationResult{
		AssetURL:        decoded.AssetURL,
		ContentType:     decoded.ContentType,
		DurationSeconds: decoded.DurationSeconds,
		Width:           decoded.Width,
		Height:          decoded.Height,
		Provider:        decoded.Provider,
	}, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Minute}
}

func classifyStatus(status int, payload []byte) *ports.ProviderError {
	message := fmt.Sprintf("provider returned status %d", status)
	var decoded generationResponseBody
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
		message = decoded.Error.Message
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &ports.ProviderError{Kind: ports.ProviderErrorRateLimited, Message: message}
	case status >= 400 && status < 500:
		return &ports.ProviderError{Kind: ports.ProviderErrorInvalidInput, Message: message}
	default:
		return &ports.ProviderError{Kind: ports.ProviderErrorServerError, Message: message}
	}
}

func providerErrorKind(raw string) ports.ProviderErrorKind {
	switch ports.ProviderErrorKind(raw) {
	case ports.ProviderErrorRateLimited, ports.ProviderErrorInvalidInput, ports.ProviderErrorServerError:
		return ports.ProviderErrorKind(raw)
	default:
		return ports.ProviderErrorServerError
	}
}
