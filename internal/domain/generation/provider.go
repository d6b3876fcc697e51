package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"autopost-server-go/internal/platform/errors"
)

// TextProvider produces one block of text for a prompt. The seed pins the
// provider's sampling so retries explore different outputs.
type TextProvider interface {
	GenerateText(ctx context.Context, prompt, system string, seed int) (string, error)
}

// ImageProvider renders a prompt into raw image bytes.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string, seed, width, height int) ([]byte, error)
}

// endpointTextProvider calls a pollinations-style GET endpoint where the
// prompt travels in the path and tuning in the query string.
type endpointTextProvider struct {
	baseURL string
	client  *http.Client
}

func NewEndpointTextProvider(baseURL string, timeout time.Duration) TextProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &endpointTextProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *endpointTextProvider) GenerateText(ctx context.Context, prompt, system string, seed int) (string, error) {
	const op errors.Op = "generation.endpointText"

	query := url.Values{}
	query.Set("model", "openai")
	query.Set("system", system)
	query.Set("private", "true")
	query.Set("seed", strconv.Itoa(seed))

	endpoint := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(prompt), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.KindGeneration, op, "build request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.KindGeneration, op, "text request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.KindGeneration, op,
			fmt.Sprintf("text endpoint returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.KindGeneration, op, "read response")
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", errors.New(errors.KindGeneration, op, "empty text response")
	}
	return text, nil
}

// openaiTextProvider is the chat-completion alternative for deployments
// with an API key.
type openaiTextProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAITextProvider(apiKey, baseURL, model string) TextProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiTextProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *openaiTextProvider) GenerateText(ctx context.Context, prompt, system string, seed int) (string, error) {
	const op errors.Op = "generation.openaiText"

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Seed:  &seed,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, errors.KindGeneration, op, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.KindGeneration, op, "no response choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New(errors.KindGeneration, op, "empty completion")
	}
	return text, nil
}

// endpointImageProvider renders images through a pollinations-style prompt
// URL.
type endpointImageProvider struct {
	baseURL string
	client  *http.Client
}

func NewEndpointImageProvider(baseURL string, timeout time.Duration) ImageProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &endpointImageProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *endpointImageProvider) GenerateImage(ctx context.Context, prompt string, seed, width, height int) ([]byte, error) {
	const op errors.Op = "generation.endpointImage"

	query := url.Values{}
	query.Set("model", "openai")
	query.Set("width", strconv.Itoa(width))
	query.Set("height", strconv.Itoa(height))
	query.Set("seed", strconv.Itoa(seed))
	query.Set("nologo", "true")
	query.Set("private", "true")
	query.Set("enhance", "true")
	query.Set("safe", "false")

	endpoint := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(prompt), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindGeneration, op, "build request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindGeneration, op, "image request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindGeneration, op,
			fmt.Sprintf("image endpoint returned %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindGeneration, op, "read response")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.KindGeneration, op, "empty image response")
	}
	return data, nil
}
