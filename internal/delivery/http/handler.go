package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pricingService *usecase.PricingService
}

// NewHandler creates a new HTTP handler
func NewHandler(pricingService *usecase.PricingService) *Handler {
	return &Handler{pricingService: pricingService}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "flipscout-backend",
		"version": "1.0.0",
	})
}

// listingRequest is the wire form of one listing to evaluate.
type listingRequest struct {
	SourceID    string          `json:"sourceId" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	ImageURL    string          `json:"imageUrl"`
	Bid         decimal.Decimal `json:"bid"`
	BidsCount   int             `json:"bidsCount"`
	EndsAt      time.Time       `json:"endsAt"`
}

type batchRequest struct {
	Listings []listingRequest `json:"listings" binding:"required,min=1"`
}

func (r *listingRequest) toSnapshot() domain.ListingSnapshot {
	return domain.ListingSnapshot{
		SourceID:    r.SourceID,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		ImageURL:    r.ImageURL,
		Bid:         r.Bid,
		BidsCount:   r.BidsCount,
		EndsAt:      r.EndsAt,
	}
}

// EvaluateListing prices a single listing
func (h *Handler) EvaluateListing(c *gin.Context) {
	if h.pricingService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing service not configured"})
		return
	}

	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result := h.pricingService.EvaluateListing(c.Request.Context(), req.toSnapshot(), nil, nil)
	c.JSON(http.StatusOK, result)
}

// EvaluateBatch prices a batch of listings over the worker pool
func (h *Handler) EvaluateBatch(c *gin.Context) {
	if h.pricingService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing service not configured"})
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	listings := make([]domain.ListingSnapshot, len(req.Listings))
	for i := range req.Listings {
		listings[i] = req.Listings[i].toSnapshot()
	}

	results, runID := h.pricingService.EvaluateBatch(c.Request.Context(), listings)
	c.JSON(http.StatusOK, gin.H{
		"runId":   runID,
		"results": results,
	})
}
