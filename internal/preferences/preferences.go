// Package preferences stores per-client settings: the explanation API key
// and the UI theme. The analysis core never reads it; the explanation
// handler looks keys up here on the caller's behalf.
package preferences

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidTheme    = errors.New("preferences: theme must be light or dark")
	ErrMissingClientID = errors.New("preferences: client id required")
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme applies to clients that never saved a preference.
const DefaultTheme = ThemeDark

// Settings are one client's preferences.
type Settings struct {
	APIKey    string    `json:"apiKey"`
	Theme     Theme     `json:"theme"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults returns the settings of a client with nothing saved.
func Defaults() Settings {
	return Settings{Theme: DefaultTheme}
}

// Update is a partial change; nil fields are left alone.
type Update struct {
	APIKey *string `json:"apiKey"`
	Theme  *Theme  `json:"theme"`
}

// Apply merges u into s.
func (u Update) Apply(s Settings) (Settings, error) {
	if u.Theme != nil {
		switch *u.Theme {
		case ThemeLight, ThemeDark:
			s.Theme = *u.Theme
		default:
			return s, ErrInvalidTheme
		}
	}
	if u.APIKey != nil {
		s.APIKey = strings.TrimSpace(*u.APIKey)
	}
	return s, nil
}

// Store persists settings by client ID. Get returns Defaults for an
// unknown client.
type Store interface {
	Get(ctx context.Context, clientID string) (Settings, error)
	Put(ctx context.Context, clientID string, s Settings) error
}

// MaskKey hides all but the last four characters of a key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// KeySource adapts a Store to the explanation handler's credential lookup.
type KeySource struct {
	Store Store
}

// APIKey returns the saved key for clientID, or "".
func (k KeySource) APIKey(ctx context.Context, clientID string) (string, error) {
	if k.Store == nil || clientID == "" {
		return "", nil
	}
	s, err := k.Store.Get(ctx, clientID)
	if err != nil {
		return "", err
	}
	return s.APIKey, nil
}
