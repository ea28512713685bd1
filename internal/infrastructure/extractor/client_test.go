package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", logger.Discard())

	assert.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestSetDebug(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", logger.Discard())

	assert.False(t, client.debug)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExtract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Gym 80 Hantelscheiben 2x 40kg", req.Title)

		response := extractionPayload{
			Candidates: []candidatePayload{{
				Brand:       "Gym 80",
				ProductType: "Hantelscheibe",
				Specs:       []specPayload{{Name: "weight", Value: "40kg"}},
				Confidence:  0.9,
			}},
			Components: []componentPayload{{
				ProductType: "Hantelscheibe",
				Quantity:    2,
				Specs:       []specPayload{{Name: "weight", Value: "40kg"}},
			}},
			Usage: usagePayload{InputTokens: 120, OutputTokens: 40, CostEUR: 0.002},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())
	ctx := context.Background()

	result, err := client.Extract(ctx, "Gym 80 Hantelscheiben 2x 40kg", "")

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Gym 80", result.Candidates[0].Brand)
	assert.Equal(t, 0.9, result.Candidates[0].Confidence)
	require.Len(t, result.Components, 1)
	assert.Equal(t, 2, result.Components[0].Quantity)
	assert.Equal(t, 0.002, result.Usage.CostEUR)
}

func TestExtract_EmptyTitle(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", logger.Discard())

	_, err := client.Extract(context.Background(), "", "description")
	assert.ErrorIs(t, err, domain.ErrInvalidListing)
}

func TestExtract_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	_, err := client.Extract(context.Background(), "Titel", "")

	assert.ErrorIs(t, err, domain.ErrExtractorFailure)
	assert.Equal(t, 3, attempts, "server errors should be retried")
}

func TestExtract_RetrySucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(extractionPayload{
			Candidates: []candidatePayload{{ProductType: "Lampe", Confidence: 0.7}},
		})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	result, err := client.Extract(context.Background(), "Alte Lampe", "")

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 1)
	assert.Equal(t, 2, attempts)
}

func TestScrapeDetail_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/detail", r.URL.Path)
		json.NewEncoder(w).Encode(detailPayload{
			FullDescription: "Zwei Hantelscheiben je 40kg",
			SellerRating:    4.8,
		})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	detail, err := client.ScrapeDetail(context.Background(), "https://example.org/listing/1")

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Zwei Hantelscheiben je 40kg", detail.FullDescription)
	assert.Equal(t, 4.8, detail.SellerRating)
}

func TestScrapeDetail_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	// A removed listing page is an unavailable escalation, not an error.
	detail, err := client.ScrapeDetail(context.Background(), "https://example.org/gone")

	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestScrapeDetail_EmptyURL(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", logger.Discard())

	detail, err := client.ScrapeDetail(context.Background(), "")

	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestAnalyzeImage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/vision", r.URL.Path)
		json.NewEncoder(w).Encode(visionPayload{
			Confidence: 0.75,
			Candidates: []candidatePayload{{
				Brand: "Apple", Model: "iPhone 12", Confidence: 0.75,
			}},
		})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	analysis, err := client.AnalyzeImage(context.Background(), "Handy", "", "https://img.example.org/1.jpg")

	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, 0.75, analysis.Confidence)
	assert.Len(t, analysis.Candidates, 1)
}

func TestAnalyzeImage_NoImage(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", logger.Discard())

	analysis, err := client.AnalyzeImage(context.Background(), "Handy", "", "")

	assert.NoError(t, err)
	assert.Nil(t, analysis)
}

func TestAnalyzeImage_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, logger.Discard())

	analysis, err := client.AnalyzeImage(context.Background(), "Handy", "", "https://img.example.org/gone.jpg")

	assert.NoError(t, err)
	assert.Nil(t, analysis)
}
