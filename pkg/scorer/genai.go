package scorer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Generator sends one prompt to a language model and returns its text answer.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GenAIConfig configures the Gemini-backed scorer.
type GenAIConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// genaiGenerator calls the Gemini API through google.golang.org/genai.
type genaiGenerator struct {
	client *genai.Client
	cfg    GenAIConfig
}

// NewGenAIGenerator creates a Gemini client.
func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &genaiGenerator{client: client, cfg: cfg}, nil
}

func (g *genaiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		ResponseMIMEType:  "application/json",
	}
	if g.cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = g.cfg.MaxOutputTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// LLMScorer asks a language model for the assessment and parses its answer.
type LLMScorer struct {
	gen    Generator
	logger *zap.Logger
}

// NewLLMScorer wraps a Generator. A nil logger disables logging.
func NewLLMScorer(gen Generator, logger *zap.Logger) *LLMScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMScorer{gen: gen, logger: logger}
}

// Score implements Scorer.
func (s *LLMScorer) Score(ctx context.Context, req Request) (*Response, error) {
	prompt := BuildPrompt(req)
	s.logger.Debug("scoring prompt", zap.String("platform", string(req.Platform)), zap.Int("chars", len(prompt)))

	text, err := s.gen.Generate(ctx, SystemInstruction, prompt)
	if err != nil {
		return nil, err
	}
	resp, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}
	resp.Platform = req.Platform
	return resp, nil
}
