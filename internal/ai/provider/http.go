package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds provider connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPClient implements Client over the provider's JSON REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ListModels returns all models visible to the current API key.
func (c *HTTPClient) ListModels(ctx context.Context) ([]Model, error) {
	body, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	return parsed.Models, nil
}

// GenerateContent runs one generation against the named model.
func (c *HTTPClient) GenerateContent(
	ctx context.Context,
	model string,
	req GenerateRequest,
) (*GenerateResponse, error) {
	payload := map[string]any{
		"prompt": req.Prompt,
		"generationConfig": map[string]any{
			"temperature":     req.Temperature,
			"topP":            req.TopP,
			"topK":            req.TopK,
			"maxOutputTokens": req.MaxOutputTokens,
		},
	}
	if req.SystemPrompt != "" {
		payload["systemInstruction"] = req.SystemPrompt
	}

	body, err := c.do(ctx, http.MethodPost, "/models/"+model+":generateContent", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Text          string `json:"text"`
		FinishReason  string `json:"finishReason"`
		UsageMetadata struct {
			PromptTokens     int `json:"promptTokenCount"`
			CandidatesTokens int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse generate response: %w", err)
	}

	return &GenerateResponse{
		Text:         parsed.Text,
		FinishReason: parsed.FinishReason,
		InputTokens:  parsed.UsageMetadata.PromptTokens,
		OutputTokens: parsed.UsageMetadata.CandidatesTokens,
	}, nil
}

// EmbedContent computes an embedding vector for text.
func (c *HTTPClient) EmbedContent(ctx context.Context, model, text string) ([]float64, error) {
	payload := map[string]any{
		"content": map[string]any{"text": text},
	}

	body, err := c.do(ctx, http.MethodPost, "/models/"+model+":embedContent", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embed response: %w", err)
	}
	return parsed.Embedding.Values, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp, body)
	}

	return body, nil
}

// parseAPIError builds a structured APIError from a non-2xx response.
// Quota violation details live in the error payload when the provider
// reports RESOURCE_EXHAUSTED.
func parseAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfterSeconds = secs
		}
	}

	var parsed struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Details []struct {
				RetryDelay string `json:"retryDelay"`
				Violations []struct {
					QuotaMetric string `json:"quotaMetric"`
					QuotaValue  int    `json:"quotaValue"`
				} `json:"violations"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	if parsed.Error.Status != "" {
		apiErr.Status = parsed.Error.Status
	}
	if parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
	}
	for _, d := range parsed.Error.Details {
		if apiErr.RetryAfterSeconds == 0 && d.RetryDelay != "" {
			if dur, err := time.ParseDuration(d.RetryDelay); err == nil {
				apiErr.RetryAfterSeconds = int(dur.Seconds())
			}
		}
		for _, v := range d.Violations {
			if apiErr.QuotaMetric == "" {
				apiErr.QuotaMetric = v.QuotaMetric
				apiErr.QuotaLimit = v.QuotaValue
			}
		}
	}
	return apiErr
}
