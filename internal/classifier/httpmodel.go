package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/korjavin/platecal/internal/nutrition"
)

// HTTPModel sends image bytes to a model server that performs its own
// preprocessing and answers with {"probabilities": [...]} in class order.
type HTTPModel struct {
	url        string
	classNames []string
	client     *http.Client
}

// NewHTTPModel creates an HTTPModel. A zero timeout defaults to 30s.
func NewHTTPModel(url string, classNames []string, timeout time.Duration) *HTTPModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		url:        url,
		classNames: classNames,
		client:     &http.Client{Timeout: timeout},
	}
}

type modelResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Classify posts image and maps the returned vector onto class names.
func (m *HTTPModel) Classify(ctx context.Context, image []byte) (nutrition.Classification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(image))
	if err != nil {
		return nutrition.Classification{}, fmt.Errorf("create model request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))

	resp, err := m.client.Do(req)
	if err != nil {
		return nutrition.Classification{}, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nutrition.Classification{}, fmt.Errorf("model server status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var mr modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nutrition.Classification{}, fmt.Errorf("decode model response: %w", err)
	}
	c, err := FromProbabilities(m.classNames, mr.Probabilities)
	if err != nil {
		return nutrition.Classification{}, &nutrition.Error{Kind: nutrition.KindMalformedClassification, Err: err}
	}
	return c, nil
}
