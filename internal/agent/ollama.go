// internal/agent/ollama.go
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	custom_errors "commit-monitor/internal/errors"
	"commit-monitor/internal/model"
)

const defaultHealthTimeout = 5 * time.Second

// OllamaBackend analyzes commits through the Ollama HTTP API. Two
// instances with different names, models and prompt builders make up the
// stock backend set.
type OllamaBackend struct {
	name         string
	kind         string
	baseURL      string
	model        string
	temperature  float64
	systemPrompt string
	buildPrompt  func(model.Commit) string
	client       *http.Client
}

// OllamaOptions configures one OllamaBackend instance.
type OllamaOptions struct {
	Name         string
	Kind         string
	BaseURL      string
	Model        string
	Temperature  float64
	SystemPrompt string
	Timeout      time.Duration
	BuildPrompt  func(model.Commit) string
}

// NewOllamaBackend creates a backend for one named analysis role.
func NewOllamaBackend(opts OllamaOptions) *OllamaBackend {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaBackend{
		name:         opts.Name,
		kind:         opts.Kind,
		baseURL:      baseURL,
		model:        opts.Model,
		temperature:  opts.Temperature,
		systemPrompt: opts.SystemPrompt,
		buildPrompt:  opts.BuildPrompt,
		client:       &http.Client{Timeout: timeout},
	}
}

func (b *OllamaBackend) Name() string { return b.name }
func (b *OllamaBackend) Kind() string { return b.kind }

// Healthy probes /api/tags with a short deadline.
func (b *OllamaBackend) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return &custom_errors.ErrBackendUnavailable{Backend: b.name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &custom_errors.ErrBackendUnavailable{
			Backend: b.name,
			Err:     fmt.Errorf("health check returned status %d", resp.StatusCode),
		}
	}
	return nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Analyze builds the backend-specific prompt from the commit metadata and
// runs one non-streaming generate call.
func (b *OllamaBackend) Analyze(ctx context.Context, commit model.Commit) (string, error) {
	if strings.TrimSpace(b.model) == "" {
		return "", fmt.Errorf("backend %s has no model configured", b.name)
	}

	reqBody := ollamaGenerateRequest{
		Model:  b.model,
		Prompt: b.buildPrompt(commit),
		System: b.systemPrompt,
		Stream: false,
		Options: map[string]any{
			"temperature": b.temperature,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &custom_errors.ErrBackendUnavailable{Backend: b.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("backend %s returned status %d: %s", b.name, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var generated ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", fmt.Errorf("decode response from backend %s: %w", b.name, err)
	}
	return generated.Response, nil
}
