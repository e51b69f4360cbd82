// internal/gpt/client.go
package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"fitgenius-bot/internal/gateway"

	openai "github.com/sashabaranov/go-openai"
)

// Client talks to any OpenAI-compatible chat endpoint. One underlying
// client is kept per API key since the key lives in the client config.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	httpClient  *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		model:       "gpt-4o-mini",
		maxTokens:   8000,
		temperature: 0.7,
		httpClient:  http.DefaultClient,
		clients:     make(map[string]*openai.Client),
	}
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) WithMaxTokens(n int) *Client {
	c.maxTokens = n
	return c
}

func (c *Client) clientFor(apiKey string) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[apiKey]; ok {
		return cl
	}
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.httpClient
	cl := openai.NewClientWithConfig(cfg)
	c.clients[apiKey] = cl
	return cl
}

// Complete implements gateway.Completer.
func (c *Client) Complete(ctx context.Context, apiKey string, r gateway.Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if r.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: r.Prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if r.Schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   r.SchemaName,
				Schema: r.Schema,
			},
		}
	}

	resp, err := c.clientFor(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", upstreamError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from GPT API")
	}

	return resp.Choices[0].Message.Content, nil
}

func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &gateway.UpstreamError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &gateway.UpstreamError{Status: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return err
}
