package gpt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fitgenius-bot/internal/gateway"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// GoClient is the same adapter on the official openai-go SDK, selected
// with provider "openai-go".
type GoClient struct {
	baseURL   string
	model     string
	maxTokens int64
	timeout   time.Duration

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewGoClient(baseURL, model string) *GoClient {
	return &GoClient{
		baseURL:   baseURL,
		model:     model,
		maxTokens: 8000,
		clients:   make(map[string]*openai.Client),
	}
}

func (c *GoClient) WithMaxTokens(n int) *GoClient {
	c.maxTokens = int64(n)
	return c
}

// WithRequestTimeout bounds each provider request; zero leaves only the
// caller's context.
func (c *GoClient) WithRequestTimeout(d time.Duration) *GoClient {
	c.timeout = d
	return c
}

func (c *GoClient) clientFor(apiKey string) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[apiKey]; ok {
		return cl
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	if c.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.timeout))
	}
	cl := openai.NewClient(opts...)
	c.clients[apiKey] = &cl
	return &cl
}

// Complete implements gateway.Completer.
func (c *GoClient) Complete(ctx context.Context, apiKey string, r gateway.Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if r.System != "" {
		messages = append(messages, openai.SystemMessage(r.System))
	}
	messages = append(messages, openai.UserMessage(r.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(0.7),
	}
	if r.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   r.SchemaName,
					Schema: r.Schema,
				},
			},
		}
	}

	chat, err := c.clientFor(apiKey).Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &gateway.UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
		}
		return "", err
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion")
	}
	return chat.Choices[0].Message.Content, nil
}
