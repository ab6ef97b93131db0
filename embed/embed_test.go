package embed_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/vecsim/embed"
	"github.com/hupe1980/vecsim/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding response.
func fakeEmbeddingResponse(dim int, texts []string) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
	}

	data := make([]embItem, len(texts))
	for i := range texts {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(i+1) * 0.01 * float64(j+1)
		}
		// Reverse order checks that results are placed by index.
		data[len(texts)-1-i] = embItem{Object: "embedding", Index: i, Embedding: vec}
	}

	b, _ := json.Marshal(resp{Object: "list", Model: "test-model", Data: data})
	return b
}

// newFakeOpenAIServer creates a test HTTP server that returns fake embeddings
// or, when status is not 200, an API error.
func newFakeOpenAIServer(t *testing.T, dim, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test","code":"test"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fakeEmbeddingResponse(dim, req.Input))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAI_Embed(t *testing.T) {
	const dim = 8
	srv, _ := newFakeOpenAIServer(t, dim, http.StatusOK)

	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))
	assert.Equal(t, dim, e.Dimension())
	assert.Equal(t, embed.ModelOpenAI3Small, e.Model())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, dim)
}

func TestOpenAI_EmbedBatchOrder(t *testing.T) {
	const dim = 4
	srv, _ := newFakeOpenAIServer(t, dim, http.StatusOK)

	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.InDelta(t, float64(i+1)*0.01, v[0], 1e-12)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, embed.ErrRateLimited},
		{"server error", http.StatusInternalServerError, embed.ErrProviderUnavailable},
		{"bad gateway", http.StatusBadGateway, embed.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newFakeOpenAIServer(t, 4, tt.status)
			e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(4))

			_, err := e.Embed(context.Background(), "hello")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(1), calls.Load(), "providers must not retry")
		})
	}

	t.Run("client error is not classified", func(t *testing.T) {
		srv, _ := newFakeOpenAIServer(t, 4, http.StatusBadRequest)
		e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(4))

		_, err := e.Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.NotErrorIs(t, err, embed.ErrRateLimited)
		assert.NotErrorIs(t, err, embed.ErrProviderUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv, _ := newFakeOpenAIServer(t, 4, http.StatusOK)
		url := srv.URL
		srv.Close()

		e := embed.NewOpenAI("test-key", embed.WithBaseURL(url), embed.WithDimension(4))
		_, err := e.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, embed.ErrProviderUnavailable)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		srv, _ := newFakeOpenAIServer(t, 3, http.StatusOK)
		e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(4))

		_, err := e.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, embed.ErrProviderUnavailable)
		assert.ErrorIs(t, err, model.ErrDimensionMismatch)
	})
}

func TestEmptyInput(t *testing.T) {
	ctx := context.Background()
	e := embed.NewOpenAI("test-key", embed.WithBaseURL("http://127.0.0.1:1"))

	_, err := e.Embed(ctx, "")
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = e.EmbedBatch(ctx, nil)
	assert.ErrorIs(t, err, embed.ErrEmptyInput)

	_, err = e.EmbedBatch(ctx, []string{"a", ""})
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}

func newFakeGenAIServer(t *testing.T, dim, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope","status":"RESOURCE_EXHAUSTED"}}`, status)
			return
		}
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}

		var req struct {
			Requests []json.RawMessage `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type embedding struct {
			Values []float32 `json:"values"`
		}
		out := struct {
			Embeddings []embedding `json:"embeddings"`
		}{}
		for i := range req.Requests {
			v := make([]float32, dim)
			v[0] = float32(i + 1)
			out.Embeddings = append(out.Embeddings, embedding{Values: v})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenAI_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	srv := newFakeGenAIServer(t, 6, http.StatusOK)

	g, err := embed.NewGenAI(ctx, "test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(6))
	require.NoError(t, err)
	assert.Equal(t, 6, g.Dimension())

	vecs, err := g.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, 1.0, vecs[0][0])
	assert.Equal(t, 2.0, vecs[1][0])

	v, err := g.Embed(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, v, 6)
}

func TestGenAI_RateLimited(t *testing.T) {
	ctx := context.Background()
	srv := newFakeGenAIServer(t, 6, http.StatusTooManyRequests)

	g, err := embed.NewGenAI(ctx, "test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(6))
	require.NoError(t, err)

	_, err = g.Embed(ctx, "a")
	assert.ErrorIs(t, err, embed.ErrRateLimited)
}

func TestFunc(t *testing.T) {
	ctx := context.Background()
	f := embed.Func{Dim: 2, Fn: func(_ context.Context, text string) ([]float64, error) {
		if text == "bad" {
			return []float64{1}, nil
		}
		return []float64{float64(len(text)), 1}, nil
	}}

	v, err := f.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, v)

	_, err = f.Embed(ctx, "bad")
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)

	_, err = f.Embed(ctx, "")
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}
