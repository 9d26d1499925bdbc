package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrProviderNotConfigured = errors.New("inference: api token is not configured")
	ErrPrediction            = errors.New("inference: prediction failed")
)

// maxResponseBody bounds what is read back from the inference API.
const maxResponseBody = 4 << 20

// Provider runs one prediction of a hosted model and returns its output URLs.
type Provider interface {
	Predict(ctx context.Context, model string, input map[string]any) ([]string, error)
}

// ReplicateProvider talks to the Replicate predictions API and waits for the
// prediction synchronously.
type ReplicateProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewReplicateProvider(baseURL, token string, timeout time.Duration) *ReplicateProvider {
	return &ReplicateProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Detail string          `json:"detail"`
}

func (p *ReplicateProvider) Predict(ctx context.Context, model string, input map[string]any) ([]string, error) {
	if p.token == "" {
		return nil, ErrProviderNotConfigured
	}
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, err
	}
	url := p.baseURL + "/v1/models/" + model + "/predictions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPrediction, err)
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("%w: status %d: undecodable response", ErrPrediction, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := pred.Detail
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrPrediction, resp.StatusCode, msg)
	}
	if msg := errorText(pred.Error); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrPrediction, msg)
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		return nil, fmt.Errorf("%w: prediction %s %s", ErrPrediction, pred.ID, pred.Status)
	}
	urls, err := decodeOutput(pred.Output)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: prediction %s returned no output (status %s)", ErrPrediction, pred.ID, pred.Status)
	}
	return urls, nil
}

// decodeOutput accepts a single URL or an array of URLs.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("%w: unexpected output shape", ErrPrediction)
	}
	return many, nil
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
