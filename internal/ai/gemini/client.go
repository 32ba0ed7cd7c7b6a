package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/mentor-ranker/internal/ai"
)

const (
	defaultModel     = "gemini-2.5-flash"
	responseMIMEType = "application/json"
)

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("gemini api returned empty response")

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeneratorConfig describes how to reach the Gemini API.
type GeneratorConfig struct {
	APIKey string
	// Endpoint overrides the API base URL, e.g. for a gateway in front of Gemini.
	Endpoint string
	Model    string
	// RequestsPerMinute caps outbound calls per process. Zero disables the limit.
	RequestsPerMinute int
}

// Generator wraps the Google GenAI client for single-shot JSON generation.
type Generator struct {
	models  modelsAPI
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGenerator creates a Generator for the Gemini API backend. A missing API
// key is a configuration error.
func NewGenerator(ctx context.Context, cfg GeneratorConfig, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ai.ErrConfiguration)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %w", ai.ErrConfiguration, err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:  client.Models,
		model:   model,
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  logger,
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// GenerateContent sends the system instruction and prompt to Gemini and returns
// the concatenated text of the response.
func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", ai.Unavailable(fmt.Errorf("outbound rate limit: %w", err))
		}
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: responseMIMEType,
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			g.logger.Debug("gemini api error",
				zap.Int("code", apiErr.Code),
				zap.String("status", apiErr.Status),
			)
		}
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := collectText(resp)
	if output == "" {
		return "", ErrEmptyResponse
	}

	return output, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
