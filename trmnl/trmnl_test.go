package trmnl

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/errors"
)

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "plugin-token", "token_type": "bearer"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "client", "secret", srv.Client())
	tok, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "plugin-token", tok)
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": true, "message": "invalid code"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "client", "secret", srv.Client()).ExchangeCode(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrExchange)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("  Bearer abc "))
	assert.Equal(t, "abc", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}

type jwksServer struct {
	key     *rsa.PrivateKey
	fetches atomic.Int32
	srv     *httptest.Server
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := &jwksServer{key: key}
	js.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		js.fetches.Add(1)
		enc := base64.RawURLEncoding
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   enc.EncodeToString(key.N.Bytes()),
				"e":   enc.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(js.srv.Close)
	return js
}

func (js *jwksServer) sign(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(js.key)
	require.NoError(t, err)
	return s
}

func TestKeySetVerify(t *testing.T) {
	js := newJWKSServer(t)
	clock := time.Now()
	ks := NewKeySet(js.srv.URL, js.srv.Client())
	ks.Now = func() time.Time { return clock }

	token := js.sign(t, "6F1C2B0E-0000-4000-8000-000000000001", clock.Add(time.Hour))

	sub, err := ks.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "6F1C2B0E-0000-4000-8000-000000000001", sub)

	require.NoError(t, ks.VerifyFor(context.Background(), token, "6f1c2b0e-0000-4000-8000-000000000001"))
	err = ks.VerifyFor(context.Background(), token, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, errors.ErrSubjectMismatch)
}

func TestKeySetRejects(t *testing.T) {
	js := newJWKSServer(t)
	clock := time.Now()
	ks := NewKeySet(js.srv.URL, js.srv.Client())
	ks.Now = func() time.Time { return clock }

	expired := js.sign(t, "user", clock.Add(-time.Minute))
	_, err := ks.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, errors.ErrAuthFailed)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "user", "exp": clock.Add(time.Hour).Unix()})
	forged.Header["kid"] = "k1"
	s, err := forged.SignedString(other)
	require.NoError(t, err)
	_, err = ks.Verify(context.Background(), s)
	assert.ErrorIs(t, err, errors.ErrAuthFailed)

	_, err = ks.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, errors.ErrAuthFailed)
}

func TestKeySetCachesForTTL(t *testing.T) {
	js := newJWKSServer(t)
	clock := time.Now()
	ks := NewKeySet(js.srv.URL, js.srv.Client())
	ks.Now = func() time.Time { return clock }

	token := js.sign(t, "user", clock.Add(10*time.Hour))
	for i := 0; i < 3; i++ {
		_, err := ks.Verify(context.Background(), token)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), js.fetches.Load())

	clock = clock.Add(JWKSCacheTTL + time.Second)
	_, err := ks.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(2), js.fetches.Load())
}

func TestKeySetUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewKeySet(srv.URL, srv.Client()).Verify(context.Background(), "x.y.z")
	require.Error(t, err)
}
