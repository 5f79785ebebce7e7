// Package store persists plugin consumers: the TRMNL users that installed the
// plugin, the access tokens TRMNL issued for them and their encrypted Canvas
// credentials.
package store

import (
	"context"
	"time"

	"canvastrmnl/errors"
)

// Consumer is a single installation of the plugin.
type Consumer struct {
	ID        string
	CreatedAt time.Time
}

// TrmnlData is what TRMNL tells us about the user behind a consumer.
type TrmnlData struct {
	ConsumerID string
	TrmnlID    string
	Name       string
	Email      string
	SettingsID int64
}

// AuthToken is a plugin access token obtained through the OAuth exchange.
// It is marked used once an install webhook has consumed it.
type AuthToken struct {
	Token     string
	Used      bool
	CreatedAt time.Time
}

// CanvasCredentials holds the Canvas hostname and access token of a
// consumer. Both values are stored encrypted and are opaque to the store.
type CanvasCredentials struct {
	ConsumerID      string
	EncryptedServer string
	EncryptedToken  string
}

type Store interface {
	// AddAuthToken records a token. Adding a known token is a no-op.
	AddAuthToken(ctx context.Context, token string) error
	AuthTokenExists(ctx context.Context, token string) (bool, error)

	// InstallConsumer creates a consumer with its TRMNL data and marks token
	// as used, all or nothing. It fails with ErrConsumerExists when the TRMNL
	// user already has a consumer.
	InstallConsumer(ctx context.Context, data TrmnlData, token string) (Consumer, error)
	// UninstallConsumer removes the consumer of a TRMNL user together with
	// everything stored for it and deletes token. It fails with ErrNotFound
	// when the TRMNL user is unknown.
	UninstallConsumer(ctx context.Context, trmnlID, token string) error

	TrmnlDataByTrmnlID(ctx context.Context, trmnlID string) (TrmnlData, error)
	UpdateTrmnlName(ctx context.Context, trmnlID, name string) error

	CanvasCredentials(ctx context.Context, consumerID string) (CanvasCredentials, error)
	// PutCanvasCredentials inserts or replaces the credentials of a consumer.
	PutCanvasCredentials(ctx context.Context, creds CanvasCredentials) error

	Close() error
}

var (
	ErrConsumerExists = errors.ErrConsumerExists
	ErrNotFound       = errors.ErrNotFound
)

// Options selects and configures a store implementation.
type Options struct {
	Driver        string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open connects to the store named by opts.Driver: "redis", "postgres" or
// "sqlite".
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case "postgres", "sqlite":
		return OpenSQL(ctx, opts.Driver, opts.DatabaseURL)
	default:
		return nil, errors.NewError("store.Open", "unknown driver "+opts.Driver, errors.ErrInitFailed)
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
