package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/flipscout/backend/config"
)

// TestMain sets up the test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupTestRouter creates a test router with default configuration. The
// pricing service is nil: evaluate endpoints answer 503, which is enough to
// exercise routing, binding and middleware.
func setupTestRouter() *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimitRPS:   100,
		},
	}

	handler := NewHandler(nil)
	router := SetupRouter(cfg, handler)
	if router == nil {
		panic("setupTestRouter: SetupRouter returned nil *gin.Engine")
	}
	return router
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		if err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "flipscout-backend" {
			t.Errorf("service = %v, want flipscout-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		methods := []string{"POST", "PUT", "DELETE", "PATCH"}
		for _, method := range methods {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s /health status = %d, want 404 or 405", method, w.Code)
			}
		}
	})
}

func TestEvaluateListingEndpoint(t *testing.T) {
	t.Run("returns 503 when pricing service unconfigured", func(t *testing.T) {
		router := setupTestRouter()

		body, _ := json.Marshal(map[string]interface{}{
			"sourceId": "kl-1",
			"title":    "Gym 80 Hantelscheiben 2x 40kg",
		})
		req, _ := http.NewRequest("POST", "/api/v1/listings/evaluate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("unknown route returns 404", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("POST", "/api/v1/listings/price", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestListingRequestBinding(t *testing.T) {
	t.Run("maps wire fields onto the snapshot", func(t *testing.T) {
		raw := `{
			"sourceId": "kl-42",
			"title": "iPhone 12 128GB",
			"description": "Guter Zustand",
			"url": "https://example.org/kl-42",
			"imageUrl": "https://img.example.org/kl-42.jpg",
			"bid": "45.50",
			"bidsCount": 3
		}`

		var req listingRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			t.Fatalf("unmarshal error = %v", err)
		}

		snap := req.toSnapshot()
		if snap.SourceID != "kl-42" {
			t.Errorf("SourceID = %s, want kl-42", snap.SourceID)
		}
		if snap.Title != "iPhone 12 128GB" {
			t.Errorf("Title = %s", snap.Title)
		}
		if snap.Bid.String() != "45.5" {
			t.Errorf("Bid = %s, want 45.5", snap.Bid)
		}
		if snap.BidsCount != 3 {
			t.Errorf("BidsCount = %d, want 3", snap.BidsCount)
		}
	})
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("allows configured origin", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("OPTIONS", "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
		}
		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})

	t.Run("rejects unknown origin", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}
