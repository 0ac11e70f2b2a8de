package preferences

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/validation"
)

// maxKeyLength bounds a stored API key.
const maxKeyLength = 256

// ClientIDHeader identifies the caller whose preferences are read or
// written.
const ClientIDHeader = "X-Client-ID"

// Handler provides HTTP endpoints for preferences.
type Handler struct {
	store Store
}

// NewHandler creates a new preferences handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up preference endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/preferences", h.Get)
	r.PUT("/preferences", h.Put)
}

// view is what clients see: the key itself is never echoed back.
type view struct {
	HasAPIKey bool   `json:"hasApiKey"`
	APIKey    string `json:"apiKey"`
	Theme     Theme  `json:"theme"`
}

func toView(s Settings) view {
	return view{HasAPIKey: s.APIKey != "", APIKey: MaskKey(s.APIKey), Theme: s.Theme}
}

// Get returns the caller's preferences.
// GET /v1/preferences
func (h *Handler) Get(c *gin.Context) {
	clientID := c.GetHeader(ClientIDHeader)
	if clientID == "" {
		missingClientID(c)
		return
	}
	s, err := h.store.Get(c.Request.Context(), clientID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": toView(s)})
}

// Put applies a partial update to the caller's preferences.
// PUT /v1/preferences
func (h *Handler) Put(c *gin.Context) {
	clientID := c.GetHeader(ClientIDHeader)
	if clientID == "" {
		missingClientID(c)
		return
	}
	var u Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Body must be a JSON object with optional 'apiKey' and 'theme'",
		})
		return
	}
	if u.APIKey != nil {
		if errs := validation.Validate(validation.MaxLength("apiKey", *u.APIKey, maxKeyLength)); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error(), "details": errs})
			return
		}
	}

	ctx := c.Request.Context()
	current, err := h.store.Get(ctx, clientID)
	if err != nil {
		internalError(c, err)
		return
	}
	updated, err := u.Apply(current)
	if errors.Is(err, ErrInvalidTheme) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_theme",
			"message": "theme must be 'light' or 'dark'",
		})
		return
	}
	if err := h.store.Put(ctx, clientID, updated); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": toView(updated)})
}

func missingClientID(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "missing_client_id",
		"message": ClientIDHeader + " header is required",
	})
}

func internalError(c *gin.Context, err error) {
	logging.L(c.Request.Context()).Error("preferences request failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Internal server error",
	})
}
