// Package embed adapts text embedding models to the engine.
//
// A Provider turns text into a dense float64 vector of a fixed dimension.
// Provider failures are surfaced as ErrProviderUnavailable or ErrRateLimited
// and never retried internally; retry policy belongs to the caller.
//
// # Implementations
//
//   - [OpenAI]: OpenAI (and OpenAI-compatible) embeddings API
//   - [GenAI]: Gemini API or Vertex AI text embeddings
//   - [Func]: a plain function, for tests and custom models
//
// [Limited] puts a client-side token bucket in front of any Provider,
// [Cached] remembers recent embeddings and [Batch] embeds many texts with
// bounded concurrency.
//
// # Quick Start
//
//	p := embed.NewOpenAI(apiKey, embed.WithModel(embed.ModelOpenAI3Small))
//	vec, err := p.Embed(ctx, "trail running shoe")
package embed

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecsim/model"
)

// Provider converts text into dense vectors.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// BatchProvider is implemented by providers that embed several texts per
// request. Batch uses it when available.
type BatchProvider interface {
	Provider

	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = fmt.Errorf("embed: empty input: %w", model.ErrInvalidArgument)

	// ErrProviderUnavailable is returned when the model cannot be reached or
	// fails on its side.
	ErrProviderUnavailable = model.ErrProviderUnavailable

	// ErrRateLimited is returned when the model or the client-side limiter
	// refuses the request.
	ErrRateLimited = model.ErrRateLimited
)

// checkDimension validates vectors returned by a remote model.
func checkDimension(want int, vecs ...[]float64) error {
	if want <= 0 {
		return nil
	}
	for _, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("%w: %w", ErrProviderUnavailable, model.NewDimensionMismatch(want, len(v)))
		}
	}
	return nil
}

func float32sToFloat64s(f32 []float32) []float64 {
	f64 := make([]float64, len(f32))
	for i, v := range f32 {
		f64[i] = float64(v)
	}
	return f64
}
