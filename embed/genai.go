package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GenAI embedding models.
const (
	// ModelGeminiEmbedding is the Gemini embedding model (3072 dims, customizable).
	ModelGeminiEmbedding = "gemini-embedding-001"

	// ModelTextEmbedding004 is the text-embedding-004 model (768 dims).
	ModelTextEmbedding004 = "text-embedding-004"
)

const (
	genAIMaxBatch     = 100
	genAIDefaultDim   = 768
	genAIDefaultModel = ModelTextEmbedding004
)

// GenAI implements [Provider] on top of the Google Gen AI SDK, which talks
// to either the Gemini API or Vertex AI.
type GenAI struct {
	client   *genai.Client
	model    string
	dim      int
	taskType string
}

var _ BatchProvider = (*GenAI)(nil)

// NewGenAI creates a provider for the Gemini API.
func NewGenAI(ctx context.Context, apiKey string, opts ...Option) (*GenAI, error) {
	return newGenAI(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}, opts)
}

// NewVertexAI creates a provider for Vertex AI using application default
// credentials.
func NewVertexAI(ctx context.Context, project, location string, opts ...Option) (*GenAI, error) {
	return newGenAI(ctx, &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}, opts)
}

func newGenAI(ctx context.Context, cc *genai.ClientConfig, opts []Option) (*GenAI, error) {
	cfg := config{
		model:      genAIDefaultModel,
		dim:        genAIDefaultDim,
		httpClient: http.DefaultClient,
		taskType:   "SEMANTIC_SIMILARITY",
	}
	for _, o := range opts {
		o(&cfg)
	}

	cc.HTTPClient = cfg.httpClient
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("embed: genai client: %w", err)
	}

	return &GenAI{
		client:   client,
		model:    cfg.model,
		dim:      cfg.dim,
		taskType: cfg.taskType,
	}, nil
}

// Embed returns the embedding for a single text.
func (g *GenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts.
func (g *GenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float64, 0, len(texts))
	for i := 0; i < len(texts); i += genAIMaxBatch {
		end := min(i+genAIMaxBatch, len(texts))

		vecs, err := g.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
		}
		result = append(result, vecs...)
	}
	return result, nil
}

// Dimension returns the configured vector dimensionality.
func (g *GenAI) Dimension() int {
	return g.dim
}

// Model returns the model identifier.
func (g *GenAI) Model() string {
	return g.model
}

func (g *GenAI) callAPI(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(g.dim)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             g.taskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, classifyGenAIError(ctx, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderUnavailable, len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float64, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: missing embedding for index %d", ErrProviderUnavailable, i)
		}
		vecs[i] = float32sToFloat64s(e.Values)
	}
	if err := checkDimension(g.dim, vecs...); err != nil {
		return nil, err
	}
	return vecs, nil
}

// classifyGenAIError maps SDK errors onto the provider taxonomy.
func classifyGenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case apiErr.Code >= 500 || apiErr.Status == "UNAVAILABLE":
			return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
