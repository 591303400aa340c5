// Package llm integrates the local Ollama service used for message triage
// and structured task extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultNumCtx      = 4096
	defaultTemperature = 0.2
)

// OllamaClient talks to the Ollama /api/generate endpoint.
type OllamaClient struct {
	host        string
	model       string
	triageModel string
	client      *http.Client
	logger      zerolog.Logger
}

// OllamaOption configures the client.
type OllamaOption func(*OllamaClient)

func WithModel(model string) OllamaOption {
	return func(c *OllamaClient) { c.model = model }
}

func WithTriageModel(model string) OllamaOption {
	return func(c *OllamaClient) { c.triageModel = model }
}

func WithHTTPClient(hc *http.Client) OllamaOption {
	return func(c *OllamaClient) { c.client = hc }
}

func WithTimeout(d time.Duration) OllamaOption {
	return func(c *OllamaClient) { c.client.Timeout = d }
}

// NewOllamaClient constructs a client for the given host
// (e.g. http://localhost:11434).
func NewOllamaClient(host string, logger zerolog.Logger, opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		host:        strings.TrimRight(host, "/"),
		model:       "llama3.1",
		triageModel: "llama3.2:1b",
		client:      &http.Client{Timeout: 10 * time.Minute},
		logger:      logger.With().Str("component", "ollama").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- Ollama wire types ----

type generateOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// generate sends a blocking generate request and returns the trimmed
// response text.
func (c *OllamaClient) generate(ctx context.Context, model, prompt, system string, jsonFormat bool) (string, error) {
	req := generateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: generateOptions{
			NumCtx:      defaultNumCtx,
			Temperature: defaultTemperature,
		},
	}
	if jsonFormat {
		req.Format = "json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if gr.Error != "" {
		return "", fmt.Errorf("ollama api error: %s", gr.Error)
	}

	c.logger.Debug().
		Str("model", model).
		Dur("elapsed", time.Since(start)).
		Msg("ollama generate")

	return strings.TrimSpace(gr.Response), nil
}

// CheckModel verifies the configured models are present on the Ollama host.
// Used as a health probe; failures are reported, not fatal.
func (c *OllamaClient) CheckModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags status %d", resp.StatusCode)
	}
	return nil
}
