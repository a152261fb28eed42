// Package provider wraps the external generative-AI provider API.
//
// This package contains:
//   - Client interface: the only entry point to the provider
//   - HTTPClient: JSON-over-HTTP implementation
//   - APIError: structured provider error carrying a status code and
//     quota metadata, so callers classify on codes instead of message text
package provider

import "context"

// Model describes a provider model as returned by the listing endpoint.
type Model struct {
	Name              string   `json:"name"`
	DisplayName       string   `json:"displayName"`
	InputTokenLimit   int      `json:"inputTokenLimit"`
	OutputTokenLimit  int      `json:"outputTokenLimit"`
	SupportedActions  []string `json:"supportedGenerationMethods"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"topP"`
	TopK              int      `json:"topK"`
}

// SupportsGeneration reports whether the model can serve generateContent.
func (m Model) SupportsGeneration() bool {
	for _, a := range m.SupportedActions {
		if a == "generateContent" {
			return true
		}
	}
	return false
}

// GenerateRequest is the input to a generation call.
type GenerateRequest struct {
	Prompt          string
	SystemPrompt    string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// GenerateResponse is the provider's generation output.
type GenerateResponse struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Embedder is the embedding API surface, kept separate from Client so
// generation-side consumers and fakes stay small.
type Embedder interface {
	// EmbedContent computes an embedding vector for text.
	EmbedContent(ctx context.Context, model, text string) ([]float64, error)
}

// Client is the provider API surface. Only the catalog and the executor
// may hold one.
type Client interface {
	// ListModels returns all models visible to the current API key.
	ListModels(ctx context.Context) ([]Model, error)

	// GenerateContent runs one generation against the named model.
	GenerateContent(ctx context.Context, model string, req GenerateRequest) (*GenerateResponse, error)
}
