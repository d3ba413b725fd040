package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daystart/internal/config"
	"daystart/internal/services"
)

// Audio is a synthesized narration clip. DurationSeconds is zero when the
// provider does not report one; callers fall back to a pace estimate.
type Audio struct {
	Data            []byte
	DurationSeconds float64
}

// Provider synthesizes narration audio for a script.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string) (Audio, error)
}

func newProviderClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120
	}
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

// NewProvider builds a provider from configuration by name.
func NewProvider(cfg config.TTSProvider) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "elevenlabs":
		return newElevenLabsProvider(cfg), nil
	case "openai":
		return newOpenAIProvider(cfg), nil
	case "":
		return nil, fmt.Errorf("speech provider name required")
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Name)
	}
}

// elevenLabsProvider speaks the ElevenLabs text-to-speech API.
type elevenLabsProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newElevenLabsProvider(cfg config.TTSProvider) *elevenLabsProvider {
	model := cfg.Model
	if model == "" {
		model = "eleven_turbo_v2_5"
	}
	return &elevenLabsProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  newProviderClient(cfg.TimeoutSeconds),
	}
}

func (p *elevenLabsProvider) Name() string { return "elevenlabs" }

func (p *elevenLabsProvider) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	if p.apiKey == "" {
		return Audio{}, services.Wrap(services.ErrPermanent, "speech", p.Name(), "api key required", nil)
	}
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": p.model,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := p.baseURL + "/text-to-speech/" + voice
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	return doSynthesis(p.client, req, p.Name())
}

// openAIProvider speaks the OpenAI speech endpoint.
type openAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newOpenAIProvider(cfg config.TTSProvider) *openAIProvider {
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	return &openAIProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  newProviderClient(cfg.TimeoutSeconds),
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	if p.apiKey == "" {
		return Audio{}, services.Wrap(services.ErrPermanent, "speech", p.Name(), "api key required", nil)
	}
	body, err := json.Marshal(map[string]any{
		"model":           p.model,
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
	})
	if err != nil {
		return Audio{}, fmt.Errorf("encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return doSynthesis(p.client, req, p.Name())
}

func doSynthesis(client *http.Client, req *http.Request, provider string) (Audio, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrTransient, "speech", provider, "synthesis request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("synthesis returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return Audio{}, services.Wrap(services.ErrRateLimited, "speech", provider, message, nil)
		case resp.StatusCode >= 500:
			return Audio{}, services.Wrap(services.ErrTransient, "speech", provider, message, nil)
		default:
			return Audio{}, services.Wrap(services.ErrPermanent, "speech", provider, message, nil)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrTransient, "speech", provider, "read synthesis body", err)
	}
	if len(data) == 0 {
		return Audio{}, services.Wrap(services.ErrTransient, "speech", provider, "empty audio response", nil)
	}
	return Audio{Data: data}, nil
}
