// Package embedding implements the embedding-provider client over plain
// HTTP: an OpenAI-embeddings-compatible request/response shape, a
// per-call deadline, and one retry on transient failure.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turag/internal/config"
)

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// defaultTimeout caps one embedding call when cfg.Timeout is unset.
const defaultTimeout = 5 * time.Second

// retryBackoff is the pause before the single retry of a transient
// (network or 5xx) embedding-call failure.
const retryBackoff = 200 * time.Millisecond

// EmbedText calls the configured embedding endpoint and returns one
// embedding per input string, retrying once with a short backoff if the
// first attempt fails transiently (network error or a 5xx status); a
// 4xx response is not retried since a malformed request will not
// succeed on a second try.
func EmbedText(ctx context.Context, cfg config.EmbeddingConfig, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}
	out, err := doEmbedText(ctx, cfg, inputs)
	if err == nil {
		return out, nil
	}
	if _, ok := err.(*transientError); !ok {
		return nil, err
	}
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out, err = doEmbedText(ctx, cfg, inputs)
	if te, ok := err.(*transientError); ok {
		return nil, te.err
	}
	return out, err
}

// transientError marks a failure eligible for the single retry above.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }

func doEmbedText(ctx context.Context, cfg config.EmbeddingConfig, inputs []string) ([][]float32, error) {
	reqBody, _ := json.Marshal(embedReq{Model: cfg.Model, Input: inputs})
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	url := cfg.BaseURL + cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	} else if cfg.APIHeader != "" {
		req.Header.Set(cfg.APIHeader, cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// A transport-level failure (timeout, connection refused, DNS)
		// is always transient from the caller's perspective.
		return nil, &transientError{err: fmt.Errorf("embeddings request: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		respErr := fmt.Errorf("embeddings error: %s: %s", resp.Status, string(b))
		if resp.StatusCode/100 == 5 {
			return nil, &transientError{err: respErr}
		}
		return nil, respErr
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var er embedResp
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response (input count: %d, response: %s): %w",
			len(inputs), string(bodyBytes[:min(200, len(bodyBytes))]), err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(er.Data), len(inputs))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// CheckReachability verifies that the embedding endpoint is reachable and
// responding correctly by sending a small test request.
func CheckReachability(ctx context.Context, cfg config.EmbeddingConfig) error {
	_, err := EmbedText(ctx, cfg, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
