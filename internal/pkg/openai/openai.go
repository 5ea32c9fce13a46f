package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultChatModel  = openai.ChatModelGPT4o
	defaultImageModel = openai.ImageModelDallE3
)

var (
	// ErrMissingAPIKey is returned when OPENAI_API_KEY was not configured.
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

// Client is a thin wrapper around the official SDK covering the two calls the
// auditor makes: a one-line chat verdict and a meme image.
type Client struct {
	client     *openai.Client
	chatModel  string
	imageModel string
}

// NewClientFromEnv builds a Client using the OPENAI_API_KEY env var.
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewClient(Options{APIKey: apiKey, BaseURL: os.Getenv("OPENAI_BASE_URL")})
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(1),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	c := &Client{chatModel: opts.ChatModel, imageModel: opts.ImageModel}
	if c.chatModel == "" {
		c.chatModel = defaultChatModel
	}
	if c.imageModel == "" {
		c.imageModel = defaultImageModel
	}

	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c, nil
}

// Verdict sends prompt as a single user message and returns the trimmed answer.
func (c *Client) Verdict(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("call OpenAI: %w", err)
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

// GenerateImage asks for one wide standard-quality image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          c.imageModel,
		Size:           openai.ImageGenerateParamsSize1792x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
		N:              openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("call OpenAI images: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrEmptyResponse
	}
	return resp.Data[0].URL, nil
}
