package gopenai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

type Options struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	HTTPClient *http.Client
}

// Client serves the same calls as the official SDK wrapper on top of
// sashabaranov/go-openai.
type Client struct {
	client     *openai.Client
	chatModel  string
	imageModel string
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	c := &Client{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  opts.ChatModel,
		imageModel: opts.ImageModel,
	}
	if c.chatModel == "" {
		c.chatModel = openai.GPT4o
	}
	if c.imageModel == "" {
		c.imageModel = openai.CreateImageModelDallE3
	}
	return c, nil
}

func (c *Client) Verdict(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", ErrEmptyResponse
	}
	return output, nil
}

func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Quality:        openai.CreateImageQualityStandard,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrEmptyResponse
	}
	return resp.Data[0].URL, nil
}
