package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"formula-gateway/internal/config"
	"formula-gateway/internal/models"
	"formula-gateway/internal/provider"
)

const (
	contentTypeJSON   = "application/json"
	userAgent         = "formula-gateway/0.1"
	maxErrorBodyBytes = 64 * 1024
	maxResponseBytes  = 8 << 20
)

// Provider implements provider.Provider for OpenAI-compatible APIs. A single
// instance speaks either the chat completions or the responses generation.
type Provider struct {
	name     string
	apiStyle string
	headers  map[string]string
	client   *http.Client
	endpoint string
}

// New creates a new OpenAI provider bound to one API style.
func New(name string, upstream config.UpstreamConfig, apiStyle string, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(upstream.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	var endpoint string
	switch apiStyle {
	case config.APIStyleChat:
		endpoint = baseURL + "/chat/completions"
	case config.APIStyleResponses:
		endpoint = baseURL + "/responses"
	default:
		return nil, fmt.Errorf("openai provider %q received unsupported api_style %q", name, apiStyle)
	}

	return &Provider{
		name:     name,
		apiStyle: apiStyle,
		headers:  upstream.Headers,
		client:   client,
		endpoint: endpoint,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Complete posts the request and decodes whichever envelope shape comes back.
func (p *Provider) Complete(ctx context.Context, apiKey string, req models.ModelRequest) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", provider.ErrNoCredential
	}

	var payload any
	switch p.apiStyle {
	case config.APIStyleResponses:
		payload = buildResponsesPayload(req)
	default:
		payload = buildChatPayload(req)
	}

	httpReq, err := p.newRequest(ctx, http.MethodPost, p.endpoint, apiKey, payload)
	if err != nil {
		return "", err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai %s request failed: %w", p.apiStyle, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}

	return provider.DecodeEnvelope(raw)
}

func (p *Provider) newRequest(ctx context.Context, method, url, apiKey string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+apiKey)

	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type chatPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(req models.ModelRequest) chatPayload {
	messages := make([]openAIMessage, 0, len(req.Turns)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, turn := range req.Turns {
		messages = append(messages, openAIMessage{Role: string(turn.Role), Content: turn.Content})
	}

	payload := chatPayload{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Sampling.Temperature,
	}
	if req.Sampling.MaxOutputTokens > 0 {
		v := req.Sampling.MaxOutputTokens
		payload.MaxTokens = &v
	}
	return payload
}

type responsesPayload struct {
	Model           string          `json:"model"`
	Instructions    string          `json:"instructions,omitempty"`
	Input           []openAIMessage `json:"input"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	Reasoning       *reasoningBlock `json:"reasoning,omitempty"`
}

type reasoningBlock struct {
	Effort string `json:"effort"`
}

func buildResponsesPayload(req models.ModelRequest) responsesPayload {
	input := make([]openAIMessage, 0, len(req.Turns))
	for _, turn := range req.Turns {
		input = append(input, openAIMessage{Role: string(turn.Role), Content: turn.Content})
	}

	payload := responsesPayload{
		Model:        req.Model,
		Instructions: req.SystemPrompt,
		Input:        input,
		Temperature:  req.Sampling.Temperature,
	}
	if req.Sampling.MaxOutputTokens > 0 {
		v := req.Sampling.MaxOutputTokens
		payload.MaxOutputTokens = &v
	}
	if effort := strings.TrimSpace(req.Sampling.ReasoningEffort); effort != "" {
		payload.Reasoning = &reasoningBlock{Effort: effort}
	}
	return payload
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return &provider.APIError{
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("failed to read body: %v", err),
		}
	}

	return &provider.APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
