package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestValidAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", true},
		{"  0x1f9840a85d5af5bf1d1762f925bdaddc4201f984  ", true},
		{"So11111111111111111111111111111111111111112", true},
		{"", true}, // Required handles emptiness

		{"1234567890123456789012345678901234567890", false},
		{"0x12345678901234567890123456789012345678", false},
		{"0xGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG", false},
		{"not an address", false},
	}

	for _, tc := range tests {
		err := ValidAddress("address", tc.addr)()
		if (err == nil) != tc.valid {
			t.Errorf("ValidAddress(%q) error = %v, want valid=%v", tc.addr, err, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"he\x00llo", 10, "hello"},
	}

	for _, tc := range tests {
		if got := SanitizeString(tc.input, tc.maxLen); got != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("address", ""),
		MaxLength("apiKey", strings.Repeat("k", 300), 256),
		ValidAddress("other", "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() != "address: is required" {
		t.Errorf("unexpected message %q", errs.Error())
	}
	if errs[1].Field != "apiKey" {
		t.Errorf("expected apiKey second, got %q", errs[1].Field)
	}

	if errs := Validate(Required("address", "x")); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if got := (ValidationErrors{}).Error(); got != "validation failed" {
		t.Errorf("empty errors message = %q", got)
	}
}

func TestAddressParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/analyze/:address", AddressParamMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/analyze/0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", http.StatusOK},
		{"/analyze/So11111111111111111111111111111111111111112", http.StatusOK},
		{"/analyze/0xnothex", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.status)
		}
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(8))
	r.POST("/x", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"address":"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected oversized body to fail, got %d", w.Code)
	}
}
