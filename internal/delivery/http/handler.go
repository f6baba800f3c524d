package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/registry"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/rs/zerolog/log"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// PriceComparer runs one comparison for a normalized query
type PriceComparer interface {
	Compare(ctx context.Context, q domain.Query) ([]domain.ProductRecord, error)
}

// RetailerLister describes the configured retailers
type RetailerLister interface {
	Retailers() []registry.RetailerInfo
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	preprocessor *usecase.QueryPreprocessor
	comparer     PriceComparer
	retailers    RetailerLister
}

// NewHandler creates a new HTTP handler
func NewHandler(preprocessor *usecase.QueryPreprocessor, comparer PriceComparer, retailers RetailerLister) *Handler {
	if preprocessor == nil {
		preprocessor = usecase.NewQueryPreprocessor(usecase.QueryConfig{})
	}
	return &Handler{
		preprocessor: preprocessor,
		comparer:     comparer,
		retailers:    retailers,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": Version,
	})
}

// SearchPrices handles price comparison requests.
// Application errors are reported with status 200 and an error body.
func (h *Handler) SearchPrices(c *gin.Context) {
	if h.comparer == nil {
		h.fail(c, errors.New("price comparison is not configured"))
		return
	}

	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidRequest, err))
		return
	}

	ctx := c.Request.Context()
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	q, err := h.preprocessor.BuildQuery(&req, timeout)
	if err != nil {
		h.fail(c, err)
		return
	}

	products, err := h.comparer.Compare(ctx, q)
	if err != nil {
		h.fail(c, err)
		return
	}
	if products == nil {
		products = []domain.ProductRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// ListRetailers returns the retailers a search can target
func (h *Handler) ListRetailers(c *gin.Context) {
	retailers := []registry.RetailerInfo{}
	if h.retailers != nil {
		retailers = h.retailers.Retailers()
	}
	c.JSON(http.StatusOK, gin.H{"retailers": retailers})
}

func (h *Handler) fail(c *gin.Context, err error) {
	event := log.Warn()
	if !errors.Is(err, domain.ErrInvalidRequest) {
		event = log.Error()
	}
	event.Err(err).Str("request_id", c.GetString(requestIDKey)).Str("path", c.Request.URL.Path).Msg("[HTTP] request failed")
	c.JSON(http.StatusOK, errorBody(err.Error()))
}

func errorBody(message string) gin.H {
	return gin.H{"error": message, "status": "error"}
}
