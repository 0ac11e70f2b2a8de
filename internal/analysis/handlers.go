package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rcollins22/rugchekr/internal/address"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/pagination"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handler provides HTTP endpoints for analyses.
type Handler struct {
	service *Service
}

// NewHandler creates a new analysis handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up analysis endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analyze/:address", h.AnalyzeAddress)
	r.GET("/analyze/:address/latest", h.LatestForAddress)
	r.POST("/analyze", h.Analyze)
	r.GET("/analyses", h.ListRecent)
	r.GET("/analyses/:id", h.GetAnalysis)
}

// AnalyzeAddress analyzes the address in the path.
// GET /v1/analyze/:address?fresh=true
func (h *Handler) AnalyzeAddress(c *gin.Context) {
	fresh, _ := strconv.ParseBool(c.Query("fresh"))
	h.run(c, c.Param("address"), fresh)
}

// Analyze analyzes the address in the request body.
// POST /v1/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must contain 'address'",
		})
		return
	}
	h.run(c, req.Address, req.Fresh)
}

func (h *Handler) run(c *gin.Context, addr string, fresh bool) {
	var (
		a   *ContractAnalysis
		err error
	)
	if fresh {
		a, err = h.service.AnalyzeFresh(c.Request.Context(), addr)
	} else {
		a, err = h.service.Analyze(c.Request.Context(), addr)
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": a})
}

// LatestForAddress returns the newest stored analysis of an address.
// GET /v1/analyze/:address/latest
func (h *Handler) LatestForAddress(c *gin.Context) {
	a, err := h.service.Latest(c.Request.Context(), c.Param("address"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": a})
}

// ListRecent returns recent analyses, newest first.
// GET /v1/analyses?limit=20&cursor=...
func (h *Handler) ListRecent(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxListLimit)
	}

	list, next, err := h.service.Recent(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analyses":   list,
		"count":      len(list),
		"nextCursor": next,
		"hasMore":    next != "",
	})
}

// GetAnalysis returns one stored analysis.
// GET /v1/analyses/:id
func (h *Handler) GetAnalysis(c *gin.Context) {
	a, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": a})
}

// WriteError maps analysis and address errors to the JSON error body.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, address.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "Address is neither an EVM (0x + 40 hex) nor a Solana (base58) address",
		})
	case errors.Is(err, address.ErrUnsupportedNetwork):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "unsupported_network",
			"message": "Solana token analysis is not supported yet",
		})
	case errors.Is(err, ErrConfiguration):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "configuration_error",
			"message": "Block explorer API key is not configured on this server",
		})
	case errors.Is(err, pagination.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not a value returned by this API",
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Analysis not found",
		})
	default:
		logging.L(c.Request.Context()).Error("analysis request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}
}
