// Package pagination implements keyset cursors over analyses ordered
// newest first by (analyzed_at, id).
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for a cursor this package did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the key of the last item on a page. The next page starts
// strictly after it.
type Cursor struct {
	AnalyzedAt time.Time
	ID         string
}

// After reports whether an item keyed (at, id) belongs on a page that
// follows c, i.e. sorts strictly older than c.
func (c *Cursor) After(at time.Time, id string) bool {
	if c == nil {
		return true
	}
	if !at.Equal(c.AnalyzedAt) {
		return at.Before(c.AnalyzedAt)
	}
	return id < c.ID
}

// Encode returns an opaque cursor string.
func Encode(analyzedAt time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", analyzedAt.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{AnalyzedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// Page trims items fetched with limit+1 to limit and returns the cursor
// for the next page, or "" when this is the last one.
func Page[T any](items []T, limit int, key func(T) (time.Time, string)) ([]T, string) {
	if limit <= 0 || len(items) <= limit {
		return items, ""
	}
	items = items[:limit]
	at, id := key(items[len(items)-1])
	return items, Encode(at, id)
}
