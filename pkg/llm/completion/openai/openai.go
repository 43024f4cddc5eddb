// Package openai implements the completion.Client interface against any
// OpenAI-compatible chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flightdeskco/flightdesk/pkg/llm"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion"
)

const (
	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultTimeout = 60 * time.Second
)

// Client wraps an OpenAI-compatible chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for the OpenAI client.
type Config struct {
	// BaseURL is the API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a single completion call. Defaults to 60s.
	Timeout time.Duration
}

// New creates a new client for an OpenAI-compatible endpoint.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete sends the request to the chat-completions endpoint and converts
// the response into the internal format. Connectivity and decoding
// failures are reported as completion.TransportError.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := json.Marshal(toOpenAIRequest(req))
	if err != nil {
		return nil, &completion.TransportError{Op: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &completion.TransportError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &completion.TransportError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &completion.TransportError{Op: "upstream response", Err: parseAPIError(resp)}
	}

	var apiResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &completion.TransportError{Op: "decode response", Err: err}
	}

	return fromOpenAIResponse(&apiResp), nil
}

func toOpenAIRequest(req *llm.ChatRequest) *openaiRequest {
	out := &openaiRequest{
		Model:       req.Model,
		Messages:    make([]openaiMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	for _, msg := range req.Messages {
		converted := openaiMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oc := openaiToolCall{ID: tc.ID, Type: "function"}
			oc.Function.Name = tc.Name
			oc.Function.Arguments = string(tc.Arguments)
			if oc.Function.Arguments == "" {
				oc.Function.Arguments = "{}"
			}
			converted.ToolCalls = append(converted.ToolCalls, oc)
		}
		out.Messages = append(out.Messages, converted)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return out
}

func fromOpenAIResponse(resp *openaiResponse) *llm.ChatResponse {
	result := &llm.ChatResponse{
		Model:     resp.Model,
		CreatedAt: time.Unix(resp.Created, 0),
	}

	if resp.Usage != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		result.Message = llm.Message{Role: llm.RoleAssistant}
		return result
	}

	choice := resp.Choices[0]
	result.StopReason = choice.FinishReason
	result.Message = llm.Message{
		Role:    choice.Message.Role,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return result
}

func parseAPIError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return fmt.Errorf("api error: %s", resp.Status)
	}

	var payload openaiError
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("api error: %s", payload.Error.Message)
	}

	return fmt.Errorf("api error: %s", resp.Status)
}

// Ensure Client implements completion.Client.
var _ completion.Client = (*Client)(nil)
