// Package trmnl talks to the TRMNL platform: it exchanges installation codes
// for plugin access tokens and verifies the JWTs TRMNL issues to users of
// the settings pages.
package trmnl

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"canvastrmnl/errors"
)

const DefaultBaseURL = "https://usetrmnl.com"

var ErrExchange = errors.New("trmnl token exchange failed")

type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client
}

func NewClient(baseURL, clientID, clientSecret string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTP:         hc,
	}
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.BaseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ExchangeCode trades the authorization code handed to the plugin during
// installation for the access token TRMNL will present on every webhook.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return "", errors.NewError("trmnl.ExchangeCode", err.Error(), ErrExchange)
	}
	return tok.AccessToken, nil
}

// BearerToken extracts the token from an Authorization header value. A bare
// token without the "Bearer " prefix is accepted as is.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	return strings.TrimPrefix(header, "Bearer ")
}
