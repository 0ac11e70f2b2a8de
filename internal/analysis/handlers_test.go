package analysis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_AnalyzeAddress(t *testing.T) {
	svc := newTestService(asProviders(stubProviders())).WithStore(NewMemoryStore(0))
	r := newTestRouter(svc)

	w := doRequest(r, http.MethodGet, "/v1/analyze/"+tokenAddr, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Analysis ContractAnalysis `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Analysis.RiskScore)
	assert.Equal(t, "MEDIUM RISK", resp.Analysis.RiskLevel.Label)
	assert.Equal(t, FlagYes, resp.Analysis.IsVerified)
	assert.Len(t, resp.Analysis.RiskFactors, 2)
}

func TestHandler_AnalyzePost(t *testing.T) {
	r := newTestRouter(newTestService(asProviders(stubProviders())))

	w := doRequest(r, http.MethodPost, "/v1/analyze", `{"address":"`+tokenAddr+`","fresh":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestHandler_ErrorMapping(t *testing.T) {
	r := newTestRouter(newTestService(asProviders(stubProviders())))

	w := doRequest(r, http.MethodGet, "/v1/analyze/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_address")

	w = doRequest(r, http.MethodGet, "/v1/analyze/7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_network")

	noKey := newTestRouter(NewService(nil, false, time.Second))
	w = doRequest(noKey, http.MethodGet, "/v1/analyze/"+tokenAddr, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "configuration_error")
}

func TestHandler_ListAndGet(t *testing.T) {
	svc := newTestService(asProviders(stubProviders())).WithStore(NewMemoryStore(0))
	r := newTestRouter(svc)

	w := doRequest(r, http.MethodGet, "/v1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/v1/analyze/"+tokenAddr, "").Code)

	w = doRequest(r, http.MethodGet, "/v1/analyses?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Contains(t, w.Body.String(), `"hasMore":false`)

	w = doRequest(r, http.MethodGet, "/v1/analyses/an_test", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/analyses/an_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/analyses?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/analyses?cursor=garbage!", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_cursor")
}

func TestHandler_LatestForAddress(t *testing.T) {
	svc := newTestService(asProviders(stubProviders())).WithStore(NewMemoryStore(0))
	r := newTestRouter(svc)

	w := doRequest(r, http.MethodGet, "/v1/analyze/"+tokenAddr+"/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/v1/analyze/"+tokenAddr, "").Code)

	w = doRequest(r, http.MethodGet, "/v1/analyze/"+tokenAddr+"/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Analysis ContractAnalysis `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "an_test", resp.Analysis.ID)

	w = doRequest(r, http.MethodGet, "/v1/analyze/0x123/latest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
