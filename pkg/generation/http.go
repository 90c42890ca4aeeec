package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPService talks to a generation backend over its JSON HTTP API.
type HTTPService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPServiceOption customizes the HTTP service.
type HTTPServiceOption func(*HTTPService)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) HTTPServiceOption {
	return func(s *HTTPService) {
		s.client.Timeout = timeout
	}
}

// NewHTTPService creates a generation client for the given backend URL.
func NewHTTPService(baseURL, apiKey string, logger *slog.Logger, opts ...HTTPServiceOption) *HTTPService {
	service := &HTTPService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "generation"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// SuggestCategory implements Service.
func (s *HTTPService) SuggestCategory(ctx context.Context, req SuggestCategoryRequest) (*SuggestCategoryResult, error) {
	var result SuggestCategoryResult

	err := s.post(ctx, "/v1/category-suggestions", req, &result)
	if err != nil {
		return nil, NewError("SuggestCategory", err)
	}

	if result.Category != nil {
		if result.Category.Main == "" || result.Category.Sub == "" || result.Category.SubSub == "" {
			return nil, NewError("SuggestCategory", fmt.Errorf("incomplete category triple: %w", ErrMalformedResponse))
		}
	}

	return &result, nil
}

// ReviseContent implements Service.
func (s *HTTPService) ReviseContent(ctx context.Context, req ReviseContentRequest) (*ReviseContentResult, error) {
	var result ReviseContentResult

	err := s.post(ctx, "/v1/content-revisions", req, &result)
	if err != nil {
		return nil, NewError("ReviseContent", err)
	}

	if result.Fields == nil {
		return nil, NewError("ReviseContent", fmt.Errorf("missing fields object: %w", ErrMalformedResponse))
	}

	return &result, nil
}

func (s *HTTPService) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w: %w", ErrUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		s.logger.WarnContext(ctx, "Generation backend returned server error",
			"path", path,
			"status", resp.StatusCode,
		)

		return fmt.Errorf("server error (status %d): %w", resp.StatusCode, ErrUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %w", resp.StatusCode, ErrMalformedResponse)
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to parse response: %w: %w", ErrMalformedResponse, err)
	}

	return nil
}
