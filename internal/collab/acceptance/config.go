package acceptance

import (
	"strings"
	"time"

	"github.com/smallbiznis/eventcrew/internal/config"
)

const (
	DefaultRedirectDelay = 2 * time.Second
	DefaultSignInPath    = "/auth/sign-in"
	DefaultListingPath   = "/events"
	DefaultPageTTL       = 30 * time.Minute
	DefaultMarkerTTL     = 24 * time.Hour
)

type Config struct {
	RedirectDelay time.Duration
	SignInPath    string
	ListingPath   string
	PageTTL       time.Duration
	MarkerTTL     time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		RedirectDelay: cfg.Accept.RedirectDelay,
		SignInPath:    cfg.Accept.SignInPath,
		ListingPath:   cfg.Accept.ListingPath,
		PageTTL:       cfg.Accept.PageTTL,
		MarkerTTL:     cfg.Accept.MarkerTTL,
	}
}

func (c Config) withDefaults() Config {
	if c.RedirectDelay <= 0 {
		c.RedirectDelay = DefaultRedirectDelay
	}
	if strings.TrimSpace(c.SignInPath) == "" {
		c.SignInPath = DefaultSignInPath
	}
	if strings.TrimSpace(c.ListingPath) == "" {
		c.ListingPath = DefaultListingPath
	}
	if c.PageTTL <= 0 {
		c.PageTTL = DefaultPageTTL
	}
	if c.MarkerTTL <= 0 {
		c.MarkerTTL = DefaultMarkerTTL
	}
	return c
}
