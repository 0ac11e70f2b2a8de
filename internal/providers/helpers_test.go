package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
	"github.com/rcollins22/rugchekr/internal/retry"
)

const testToken = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"

func testDeps(srv *httptest.Server) Deps {
	return Deps{
		HTTPClient: srv.Client(),
		Breaker:    circuitbreaker.New(100, time.Minute),
		Retry:      retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
