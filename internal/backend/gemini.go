package backend

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hpungsan/fishscroll/internal/imaging"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini identifies fish with a GenerateContent call carrying the image as a blob.
type Gemini struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

// NewGemini creates a provider. Extra client options are appended after the API key.
func NewGemini(apiKey, model string, opts ...option.ClientOption) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (g *Gemini) Name() string { return ProviderGemini }

// Identify implements Model. The image must be a base64 data URI.
func (g *Gemini) Identify(ctx context.Context, image string) (string, error) {
	uri, err := imaging.ParseDataURI(image)
	if err != nil {
		return "", fmt.Errorf("gemini: bad image: %w", err)
	}
	mime := uri.MIME
	if !strings.HasPrefix(mime, "image/") {
		mime = imaging.SniffMIME(uri.Data)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens:  ptrInt32(MaxOutputTokens),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(InstructionPrompt),
		&genai.Blob{MIMEType: mime, Data: uri.Data},
	)
	if err != nil {
		if isGeminiQuota(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	txt := firstText(resp)
	if txt == "" {
		return "", ErrEmptyResponse
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func isGeminiQuota(err error) bool {
	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}

func ptrInt32(v int32) *int32 { return &v }
