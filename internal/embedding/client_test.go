package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/config"
)

func writeEmbeddingResponse(w http.ResponseWriter, dim int) {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = 0.1
	}
	resp := map[string]any{"data": []map[string]any{{"embedding": vec}}}
	b, _ := json.Marshal(resp)
	w.Write(b)
}

func TestEmbedTextBearerAuthorization(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeEmbeddingResponse(w, 3)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m", APIHeader: "Authorization", APIKey: "secret"}
	out, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0], 3)
}

func TestEmbedTextCustomHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.Header.Get("X-Api-Key"))
		writeEmbeddingResponse(w, 2)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m", APIHeader: "X-Api-Key", APIKey: "abc"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.NoError(t, err)
}

func TestEmbedTextCountMismatchIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x", "y"})
	require.Error(t, err)
}

func TestEmbedTextRetriesOnceOn5xx(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeEmbeddingResponse(w, 4)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m"}
	out, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, out, 1)
}

func TestEmbedTextDoesNotRetryOn4xx(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
