// Package openai provides a Translator backed by the OpenAI chat completions
// API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/polyglossa/pkg/provider/translate"
)

const (
	defaultModel = "gpt-4o-mini"

	// Low temperature keeps translations consistent between repeated phrases.
	defaultTemperature = 0.3

	// Translations of single utterances are short; cap the completion so a
	// runaway generation cannot stall the utterance batch.
	defaultMaxTokens = 200
)

// Translator implements translate.Translator using OpenAI chat completions.
type Translator struct {
	client      oai.Client
	model       string
	temperature float64
	maxTokens   int
}

// config holds optional construction settings.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for the Translator.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL (e.g., for Azure
// OpenAI deployments).
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs an OpenAI-backed Translator. apiKey must be non-empty; an
// empty model selects gpt-4o-mini.
func New(apiKey, model string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Translator{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}, nil
}

// Compile-time assertion that Translator satisfies translate.Translator.
var _ translate.Translator = (*Translator)(nil)

// Translate sends the instruction as the system prompt and text as the user
// message, returning the trimmed completion content.
func (t *Translator) Translate(ctx context.Context, instruction, text string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(t.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(instruction),
			oai.UserMessage(text),
		},
		Temperature:         param.NewOpt(t.temperature),
		MaxCompletionTokens: param.NewOpt(int64(t.maxTokens)),
	}

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
