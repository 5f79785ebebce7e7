package trmnl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"canvastrmnl/errors"
	"canvastrmnl/logger"
)

// JWKSCacheTTL is how long fetched signing keys are trusted before they are
// fetched again.
const JWKSCacheTTL = 4 * time.Hour

var log = logger.Named("trmnl")

// KeySet verifies TRMNL-issued JWTs against TRMNL's published signing keys.
// Keys are fetched lazily and cached for TTL. Safe for concurrent use.
type KeySet struct {
	URL  string
	HTTP *http.Client
	TTL  time.Duration
	Now  func() time.Time

	mu      sync.Mutex
	kf      keyfunc.Keyfunc
	fetched time.Time
}

func NewKeySet(baseURL string, hc *http.Client) *KeySet {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &KeySet{
		URL:  strings.TrimRight(baseURL, "/") + "/.well-known/jwks.json",
		HTTP: hc,
		TTL:  JWKSCacheTTL,
		Now:  time.Now,
	}
}

func (ks *KeySet) fetch(ctx context.Context) (keyfunc.Keyfunc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ks.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return keyfunc.NewJWKSetJSON(json.RawMessage(raw))
}

func (ks *KeySet) keys(ctx context.Context) (keyfunc.Keyfunc, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := ks.Now()
	if ks.kf != nil && now.Sub(ks.fetched) <= ks.TTL {
		return ks.kf, nil
	}
	if ks.kf != nil {
		log.Info("JWKs cache is stale, reloading.")
	}

	kf, err := ks.fetch(ctx)
	if err != nil {
		return nil, errors.NewError("trmnl.KeySet", "failed to load JWKs", err)
	}
	ks.kf = kf
	ks.fetched = now
	return kf, nil
}

// Verify checks token's signature and expiry and returns its subject, the
// TRMNL user id it was issued for.
func (ks *KeySet) Verify(ctx context.Context, token string) (string, error) {
	kf, err := ks.keys(ctx)
	if err != nil {
		return "", err
	}

	parsed, err := jwt.Parse(token, kf.Keyfunc,
		jwt.WithTimeFunc(ks.Now),
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}),
	)
	if err != nil {
		return "", errors.NewError("trmnl.Verify", err.Error(), errors.ErrAuthFailed)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.NewError("trmnl.Verify", "token has no subject", errors.ErrAuthFailed)
	}
	return sub, nil
}

// VerifyFor verifies token and checks that it was issued for trmnlID.
// Subjects are compared case-insensitively.
func (ks *KeySet) VerifyFor(ctx context.Context, token, trmnlID string) error {
	sub, err := ks.Verify(ctx, token)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sub, trmnlID) {
		return errors.NewError("trmnl.VerifyFor", fmt.Sprintf("sub %s, trmnlId %s", sub, trmnlID), errors.ErrSubjectMismatch)
	}
	return nil
}
