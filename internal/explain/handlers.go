package explain

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/metrics"
)

const (
	KeyHeader      = "X-OpenAI-Key"
	ClientIDHeader = "X-Client-ID"
)

// Analyzer returns the record to explain.
type Analyzer interface {
	Analyze(ctx context.Context, address string) (*analysis.ContractAnalysis, error)
}

// Explainer turns a record into prose.
type Explainer interface {
	Explain(ctx context.Context, a *analysis.ContractAnalysis, apiKey string) (string, error)
}

// KeyLookup finds a caller's saved API key.
type KeyLookup interface {
	APIKey(ctx context.Context, clientID string) (string, error)
}

// Handler provides the explanation endpoint.
type Handler struct {
	analyzer  Analyzer
	explainer Explainer
	keys      KeyLookup
	serverKey string
}

// NewHandler creates a new explanation handler. keys may be nil and
// serverKey may be empty.
func NewHandler(analyzer Analyzer, explainer Explainer, keys KeyLookup, serverKey string) *Handler {
	return &Handler{analyzer: analyzer, explainer: explainer, keys: keys, serverKey: serverKey}
}

// RegisterRoutes sets up explanation endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/explain/:address", h.Explain)
}

// Explain analyzes the address (served from cache when fresh) and asks
// the model to explain the result.
// POST /v1/explain/:address
func (h *Handler) Explain(c *gin.Context) {
	ctx := c.Request.Context()

	key, err := h.credential(c)
	if err != nil {
		logging.L(ctx).Warn("preference lookup failed", "error", err)
	}
	if key == "" {
		metrics.ExplanationsTotal.WithLabelValues("missing_credential").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_credential",
			"message": "Provide an API key via " + KeyHeader + " or save one in your preferences",
		})
		return
	}

	a, err := h.analyzer.Analyze(ctx, c.Param("address"))
	if err != nil {
		analysis.WriteError(c, err)
		return
	}

	text, err := h.explainer.Explain(ctx, a, key)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.ExplanationsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"explanation": text,
		"analysis":    a,
	})
}

// credential resolves the key: request header, then the caller's saved
// preference, then the server default.
func (h *Handler) credential(c *gin.Context) (string, error) {
	if k := strings.TrimSpace(c.GetHeader(KeyHeader)); k != "" {
		return k, nil
	}
	var lookupErr error
	if h.keys != nil {
		if id := c.GetHeader(ClientIDHeader); id != "" {
			k, err := h.keys.APIKey(c.Request.Context(), id)
			if err == nil && k != "" {
				return k, nil
			}
			lookupErr = err
		}
	}
	return h.serverKey, lookupErr
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		metrics.ExplanationsTotal.WithLabelValues("missing_credential").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_credential", "message": "API key is required"})
	case errors.Is(err, ErrAuthentication):
		metrics.ExplanationsTotal.WithLabelValues("auth").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credential", "message": "The explanation API rejected the key"})
	case errors.Is(err, ErrQuota):
		metrics.ExplanationsTotal.WithLabelValues("quota").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded", "message": "The explanation API quota is exhausted, try again later"})
	default:
		metrics.ExplanationsTotal.WithLabelValues("error").Inc()
		logging.L(c.Request.Context()).Error("explanation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "explanation_failed", "message": "Failed to get an explanation"})
	}
}
