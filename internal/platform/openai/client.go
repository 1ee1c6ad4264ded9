package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/yungbote/lessongen/internal/platform/envutil"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/platform/promptstyle"
)

// Request is a single prompt sent to the generation backend.
type Request struct {
	System string
	User   string
	// Model overrides the client default when non-empty.
	Model string
	// Deterministic pins temperature to 0.
	Deterministic bool
	// JSON asks for a json_object response format.
	JSON bool
}

type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the generation backend used by the rest of the service.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config holds the resolved backend settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		APIKey:  envutil.String("OPENAI_API_KEY", "", nil),
		BaseURL: envutil.String("OPENAI_BASE_URL", "", log),
		Model:   envutil.String("OPENAI_MODEL", "gpt-4o", log),
	}
}

type client struct {
	log   *logger.Logger
	sdk   openai.Client
	model string
}

// NewClient builds the chat-completions backend. The SDK never retries: the
// caller owns the deadline and the retry policy.
func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &client{
		log:   log.With("service", "OpenAIClient"),
		sdk:   openai.NewClient(opts...),
		model: model,
	}, nil
}

func (c *client) Complete(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	mode := "code"
	if req.JSON {
		mode = "json"
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system := promptstyle.ApplySystem(req.System, mode); system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.Deterministic {
		params.Temperature = openai.Float(0)
		params.Seed = openai.Int(0)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		c.log.Warn("OpenAI completion failed",
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Response{}, &HTTPError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("openai: empty choices")
	}

	out := Response{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	c.log.Debug("OpenAI completion done",
		"model", out.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens,
		"output_len", len(out.Text),
	)
	return out, nil
}

// HTTPError exposes the upstream status for error classification.
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
