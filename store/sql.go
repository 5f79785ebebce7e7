package store

import (
	"context"
	"database/sql"
	"embed"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"canvastrmnl/errors"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQL is a Store backed by PostgreSQL or SQLite.
type SQL struct {
	DB     *sql.DB
	Driver string
	Now    func() time.Time
}

// OpenSQL opens the database and applies the schema. driver is "postgres"
// or "sqlite".
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.NewError("store.OpenSQL", "database url is required", errors.ErrInitFailed)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.NewError("store.OpenSQL", "cannot open "+driver+" database", err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{DB: db, Driver: driver, Now: time.Now}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return errors.NewError("store.applySchema", "read schema", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return errors.NewError("store.applySchema", "apply schema", err)
	}
	return nil
}

// rebind rewrites ? placeholders into the $n form postgres expects.
func (s *SQL) rebind(query string) string {
	if s.Driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQL) row(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQL) AddAuthToken(ctx context.Context, token string) error {
	_, err := s.exec(ctx, s.DB,
		"INSERT INTO trmnl_authorization_tokens (token, created_at) VALUES (?, ?) ON CONFLICT (token) DO NOTHING",
		token, millis(s.Now()))
	if err != nil {
		return errors.NewError("store.AddAuthToken", "insert failed", err)
	}
	return nil
}

func (s *SQL) AuthTokenExists(ctx context.Context, token string) (bool, error) {
	var found int
	err := s.row(ctx, s.DB, "SELECT 1 FROM trmnl_authorization_tokens WHERE token = ?", token).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewError("store.AuthTokenExists", "query failed", err)
	}
	return true, nil
}

// isUniqueViolation reports whether err is a unique constraint failure,
// which is how a concurrent install of the same TRMNL user surfaces.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func (s *SQL) consumerIDOf(ctx context.Context, q querier, trmnlID string) (string, error) {
	var id string
	err := s.row(ctx, q, "SELECT consumer_id FROM trmnl_data WHERE trmnl_id = ?", trmnlID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *SQL) InstallConsumer(ctx context.Context, data TrmnlData, token string) (Consumer, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", "cannot begin transaction", err)
	}
	defer tx.Rollback()

	_, err = s.consumerIDOf(ctx, tx, data.TrmnlID)
	switch {
	case err == nil:
		return Consumer{}, errors.NewError("store.InstallConsumer", data.TrmnlID, ErrConsumerExists)
	case !errors.Is(err, ErrNotFound):
		return Consumer{}, errors.NewError("store.InstallConsumer", "lookup failed", err)
	}

	c := Consumer{ID: uuid.NewString(), CreatedAt: fromMillis(millis(s.Now()))}
	if _, err := s.exec(ctx, tx, "INSERT INTO consumers (id, created_at) VALUES (?, ?)", c.ID, millis(c.CreatedAt)); err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", "insert consumer", err)
	}
	_, err = s.exec(ctx, tx,
		"INSERT INTO trmnl_data (consumer_id, trmnl_id, name, email, settings_id) VALUES (?, ?, ?, ?, ?)",
		c.ID, data.TrmnlID, data.Name, data.Email, data.SettingsID)
	if isUniqueViolation(err) {
		return Consumer{}, errors.NewError("store.InstallConsumer", data.TrmnlID, ErrConsumerExists)
	} else if err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", "insert trmnl data", err)
	}
	if _, err := s.exec(ctx, tx, "UPDATE trmnl_authorization_tokens SET used = TRUE WHERE token = ?", token); err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", "mark token used", err)
	}

	if err := tx.Commit(); isUniqueViolation(err) {
		return Consumer{}, errors.NewError("store.InstallConsumer", data.TrmnlID, ErrConsumerExists)
	} else if err != nil {
		return Consumer{}, errors.NewError("store.InstallConsumer", "commit failed", err)
	}
	return c, nil
}

func (s *SQL) UninstallConsumer(ctx context.Context, trmnlID, token string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewError("store.UninstallConsumer", "cannot begin transaction", err)
	}
	defer tx.Rollback()

	id, err := s.consumerIDOf(ctx, tx, trmnlID)
	if err != nil {
		return errors.NewError("store.UninstallConsumer", trmnlID, err)
	}

	// SQLite does not enforce the cascades unless asked to, so children go first.
	for _, q := range []string{
		"DELETE FROM canvas_tokens WHERE consumer_id = ?",
		"DELETE FROM trmnl_data WHERE consumer_id = ?",
		"DELETE FROM consumers WHERE id = ?",
	} {
		if _, err := s.exec(ctx, tx, q, id); err != nil {
			return errors.NewError("store.UninstallConsumer", "delete consumer", err)
		}
	}
	if _, err := s.exec(ctx, tx, "DELETE FROM trmnl_authorization_tokens WHERE token = ?", token); err != nil {
		return errors.NewError("store.UninstallConsumer", "delete token", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewError("store.UninstallConsumer", "commit failed", err)
	}
	return nil
}

func (s *SQL) TrmnlDataByTrmnlID(ctx context.Context, trmnlID string) (TrmnlData, error) {
	d := TrmnlData{}
	err := s.row(ctx, s.DB,
		"SELECT consumer_id, trmnl_id, name, email, settings_id FROM trmnl_data WHERE trmnl_id = ?", trmnlID,
	).Scan(&d.ConsumerID, &d.TrmnlID, &d.Name, &d.Email, &d.SettingsID)
	if errors.Is(err, sql.ErrNoRows) {
		return TrmnlData{}, errors.NewError("store.TrmnlDataByTrmnlID", trmnlID, ErrNotFound)
	}
	if err != nil {
		return TrmnlData{}, errors.NewError("store.TrmnlDataByTrmnlID", "query failed", err)
	}
	return d, nil
}

func (s *SQL) UpdateTrmnlName(ctx context.Context, trmnlID, name string) error {
	res, err := s.exec(ctx, s.DB, "UPDATE trmnl_data SET name = ? WHERE trmnl_id = ?", name, trmnlID)
	if err != nil {
		return errors.NewError("store.UpdateTrmnlName", "update failed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewError("store.UpdateTrmnlName", trmnlID, ErrNotFound)
	}
	return nil
}

func (s *SQL) CanvasCredentials(ctx context.Context, consumerID string) (CanvasCredentials, error) {
	c := CanvasCredentials{ConsumerID: consumerID}
	err := s.row(ctx, s.DB,
		"SELECT canvas_server, canvas_token FROM canvas_tokens WHERE consumer_id = ?", consumerID,
	).Scan(&c.EncryptedServer, &c.EncryptedToken)
	if errors.Is(err, sql.ErrNoRows) {
		return CanvasCredentials{}, errors.NewError("store.CanvasCredentials", consumerID, ErrNotFound)
	}
	if err != nil {
		return CanvasCredentials{}, errors.NewError("store.CanvasCredentials", "query failed", err)
	}
	return c, nil
}

func (s *SQL) PutCanvasCredentials(ctx context.Context, creds CanvasCredentials) error {
	var found int
	err := s.row(ctx, s.DB, "SELECT 1 FROM consumers WHERE id = ?", creds.ConsumerID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewError("store.PutCanvasCredentials", creds.ConsumerID, ErrNotFound)
	}
	if err != nil {
		return errors.NewError("store.PutCanvasCredentials", "query failed", err)
	}

	_, err = s.exec(ctx, s.DB,
		`INSERT INTO canvas_tokens (consumer_id, canvas_server, canvas_token) VALUES (?, ?, ?)
		ON CONFLICT (consumer_id) DO UPDATE SET canvas_server = excluded.canvas_server, canvas_token = excluded.canvas_token`,
		creds.ConsumerID, creds.EncryptedServer, creds.EncryptedToken)
	if err != nil {
		return errors.NewError("store.PutCanvasCredentials", "upsert failed", err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.DB.Close()
}
