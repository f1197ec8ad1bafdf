// Package docling provides an extractor backed by a document
// conversion service that renders PDFs, DOCX and scans to Markdown.
package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultTimeout covers slow OCR-heavy conversions.
const DefaultTimeout = 5 * time.Minute

// Config holds configuration for the conversion service client.
type Config struct {
	// BaseURL is the service address (required).
	BaseURL string

	// Timeout bounds one conversion (default: 5m).
	Timeout time.Duration
}

// Extractor converts documents to Markdown via the service's /convert
// endpoint. Sources may be local paths or URLs reachable by the
// service.
type Extractor struct {
	client  *http.Client
	baseURL string
}

// convertRequest is the conversion request format.
type convertRequest struct {
	Source string `json:"source"`
}

// convertResponse is the conversion response format.
type convertResponse struct {
	Markdown string `json:"markdown"`
	Error    string `json:"error,omitempty"`
}

// New creates a conversion service client.
func New(cfg Config) (*Extractor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("docling: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Extractor{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}, nil
}

// Extract converts the source to Markdown. Heading markers in the
// output drive downstream chunk boundaries.
func (e *Extractor) Extract(ctx context.Context, source string) (string, error) {
	jsonBody, err := json.Marshal(convertRequest{Source: source})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/convert", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrExtraction, resp.StatusCode, string(body))
	}

	var convResp convertResponse
	if err := json.Unmarshal(body, &convResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrExtraction, err)
	}
	if convResp.Error != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrExtraction, convResp.Error)
	}
	if convResp.Markdown == "" {
		return "", fmt.Errorf("%w: empty conversion result for %s", domain.ErrExtraction, source)
	}
	return convResp.Markdown, nil
}
