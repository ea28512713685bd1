// Package extractor is the HTTP client for the AI extraction service. The
// engine treats the model call as a black box behind a JSON API: structured
// candidates in, no re-validation beyond the confidence field.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// Client handles communication with the extraction API. It implements the
// Extractor, DetailScraper and ImageAnalyzer collaborator interfaces.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	log         *logger.Log
	debug       bool
}

// NewClient creates a new extraction API client
func NewClient(apiKey, baseURL string, log *logger.Log) *Client {
	// The extraction backend budgets ~2 requests/sec per key; burst cushions
	// batch start spikes.
	limiter := rate.NewLimiter(rate.Limit(2), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
		log:         log,
	}
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

type extractRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type detailRequest struct {
	URL string `json:"url"`
}

type visionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl"`
}

// Extract sends title and description to the extraction endpoint.
func (c *Client) Extract(ctx context.Context, title, description string) (*domain.ExtractionResult, error) {
	if title == "" {
		return nil, domain.ErrInvalidListing
	}

	var wire extractionPayload
	err := c.post(ctx, "/v1/extract", extractRequest{Title: title, Description: description}, &wire)
	if err != nil {
		return nil, err
	}
	return mapExtraction(&wire), nil
}

// ScrapeDetail fetches the full description for a listing URL.
// Returns (nil, nil) when the detail page is unavailable.
func (c *Client) ScrapeDetail(ctx context.Context, url string) (*domain.ListingDetail, error) {
	if url == "" {
		return nil, nil
	}

	var wire detailPayload
	err := c.post(ctx, "/v1/detail", detailRequest{URL: url}, &wire)
	if err == errUnavailable {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mapDetail(&wire), nil
}

// AnalyzeImage runs the vision escalation.
// Returns (nil, nil) when analysis is unavailable for the image.
func (c *Client) AnalyzeImage(ctx context.Context, title, description, imageURL string) (*domain.ImageAnalysis, error) {
	if imageURL == "" {
		return nil, nil
	}

	var wire visionPayload
	err := c.post(ctx, "/v1/vision", visionRequest{Title: title, Description: description, ImageURL: imageURL}, &wire)
	if err == errUnavailable {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mapVision(&wire), nil
}

// post executes a rate-limited JSON POST with up to 3 attempts on transient
// failures. 404 means the resource (detail page, image) is unavailable
// rather than an API failure.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", "FlipScout/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrExtractorFailure, err)
			if c.debug {
				c.log.WithFields(logger.Fields{"path": path, "attempt": attempt, "error": err}).
					Debug("extraction request error")
			}
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return errUnavailable
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrExtractorFailure, resp.StatusCode)
			if c.debug {
				c.log.WithFields(logger.Fields{"path": path, "attempt": attempt, "status": resp.StatusCode, "body": string(respBody)}).
					Debug("extraction API error")
			}
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode: %v", domain.ErrExtractorFailure, err)
		}
		return nil
	}
	return lastErr
}
