package backend

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// MaxOutputTokens bounds the model reply.
const MaxOutputTokens = 1000

var (
	// ErrQuotaExceeded indicates the provider returned a quota or rate-limit error (HTTP 429 or similar).
	ErrQuotaExceeded = stderrors.New("ai quota exceeded")

	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = stderrors.New("ai returned an empty response")
)

// Model sends an image and the instruction prompt to a multimodal model and
// returns its raw text reply.
type Model interface {
	Name() string
	Identify(ctx context.Context, image string) (string, error)
}

// ModelConfig selects and configures a provider.
type ModelConfig struct {
	Provider string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiKey   string
	GeminiModel string
}

// NewModel builds the configured provider.
func NewModel(cfg ModelConfig) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is empty")
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is empty")
		}
		return NewGemini(cfg.GeminiKey, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
