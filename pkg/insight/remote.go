package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pivotlabs/chatlens/pkg/charts"
)

// Remote calls an external HTTP service to generate insight text, extracting
// the text from the JSON response with a configurable gjson path. This lets
// the assistant delegate insight generation to any REST endpoint without a
// service-specific client.
//
// Remote is fail-soft: on any transport, status, or extraction error it logs
// and falls back to the configured Fallback generator, so insight generation
// never surfaces a remote failure to the chat pipeline.
//
// Example configuration for an OpenAI-compatible endpoint:
//
//	gen := &insight.Remote{
//	    URL:      "https://llm.internal/v1/insight",
//	    TextPath: "choices.0.message.content",
//	    Fallback: insight.NewCanned(nil, 0),
//	}
type Remote struct {
	// URL is the endpoint to POST to (required).
	URL string

	// TextPath is the gjson path to the insight text in the response body.
	// Defaults to "text".
	TextPath string

	// Fallback generates the insight when the remote call fails (required).
	Fallback Generator

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// Logger is optional.
	Logger *slog.Logger
}

type remoteRequest struct {
	Key       string `json:"key"`
	ChartType string `json:"chartType"`
}

// Generate calls the remote endpoint and extracts the insight text.
func (r *Remote) Generate(ctx context.Context, key string, kind charts.Kind) (string, error) {
	text, err := r.call(ctx, key, kind)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("remote insight generation failed, using fallback", "url", r.URL, "error", err)

	if r.Fallback == nil {
		return "", err
	}
	return r.Fallback.Generate(ctx, key, kind)
}

func (r *Remote) call(ctx context.Context, key string, kind charts.Kind) (string, error) {
	if r.URL == "" {
		return "", errors.New("remote insight: URL is required")
	}

	body, err := json.Marshal(remoteRequest{Key: key, ChartType: string(kind)})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	cli := r.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := cli.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, string(snippet))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	path := r.TextPath
	if path == "" {
		path = "text"
	}

	result := gjson.GetBytes(respBody, path)
	if !result.Exists() {
		return "", fmt.Errorf("text path %q not found in response", path)
	}

	text := result.String()
	if text == "" {
		return "", errors.New("remote insight: empty text in response")
	}
	return text, nil
}
