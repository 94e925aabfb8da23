package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	indigo "github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"golang.org/x/time/rate"
)

// Config tunes the directory-backed resolver. Zero values fall back to
// DefaultConfig.
type Config struct {
	PLCHost      string
	HTTPTimeout  time.Duration
	CacheSize    int
	HitTTL       time.Duration
	ErrTTL       time.Duration
	InvalidTTL   time.Duration
	PLCRateLimit rate.Limit
}

// DefaultConfig caches generously: resolutions feed interactive
// lookups where a stale handle is acceptable and a PLC round trip per
// request is not.
func DefaultConfig() Config {
	return Config{
		PLCHost:      indigo.DefaultPLCURL,
		HTTPTimeout:  15 * time.Second,
		CacheSize:    250_000,
		HitTTL:       24 * time.Hour,
		ErrTTL:       2 * time.Minute,
		InvalidTTL:   5 * time.Minute,
		PLCRateLimit: rate.Limit(25),
	}
}

// directoryResolver resolves through indigo's identity directory,
// wrapped in its two-tier in-process cache.
type directoryResolver struct {
	dir indigo.Directory
}

// NewResolver builds the production resolver.
func NewResolver(cfg Config) Resolver {
	def := DefaultConfig()
	if cfg.PLCHost == "" {
		cfg.PLCHost = def.PLCHost
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.HitTTL == 0 {
		cfg.HitTTL = def.HitTTL
	}
	if cfg.ErrTTL == 0 {
		cfg.ErrTTL = def.ErrTTL
	}
	if cfg.InvalidTTL == 0 {
		cfg.InvalidTTL = def.InvalidTTL
	}
	if cfg.PLCRateLimit == 0 {
		cfg.PLCRateLimit = def.PLCRateLimit
	}

	base := indigo.BaseDirectory{
		PLCURL: cfg.PLCHost,
		HTTPClient: http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		PLCLimiter: rate.NewLimiter(cfg.PLCRateLimit, 1),
		Resolver: net.Resolver{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: 5 * time.Second}
				return d.DialContext(ctx, network, address)
			},
		},
		TryAuthoritativeDNS: true,
		// The main Bluesky PDS fleet only answers HTTP resolution.
		SkipDNSDomainSuffixes: []string{".bsky.social"},
		UserAgent:             "wolfgang/1.0",
	}
	cache := indigo.NewCacheDirectory(&base, cfg.CacheSize, cfg.HitTTL, cfg.ErrTTL, cfg.InvalidTTL)

	return &directoryResolver{dir: &cache}
}

func (r *directoryResolver) ResolveHandle(ctx context.Context, raw string) (string, error) {
	handle, err := syntax.ParseHandle(raw)
	if err != nil {
		return "", &ErrInvalidIdentifier{Identifier: raw, Reason: err.Error()}
	}

	ident, err := r.dir.LookupHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, indigo.ErrHandleNotFound) {
			return "", &ErrNotFound{Identifier: raw}
		}
		return "", fmt.Errorf("resolving handle %s: %w", raw, err)
	}
	return ident.DID.String(), nil
}

func (r *directoryResolver) ResolveDID(ctx context.Context, raw string) (string, error) {
	did, err := syntax.ParseDID(raw)
	if err != nil {
		return "", &ErrInvalidIdentifier{Identifier: raw, Reason: err.Error()}
	}

	ident, err := r.dir.LookupDID(ctx, did)
	if err != nil {
		if errors.Is(err, indigo.ErrDIDNotFound) {
			return "", &ErrNotFound{Identifier: raw}
		}
		return "", fmt.Errorf("resolving did %s: %w", raw, err)
	}
	return ident.Handle.String(), nil
}
