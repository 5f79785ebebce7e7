package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"

	"canvastrmnl/canvas"
	"canvastrmnl/display"
	"canvastrmnl/errors"
	"canvastrmnl/logger"
	"canvastrmnl/store"
	"canvastrmnl/trmnl"
)

// Plain-text response bodies of the TRMNL endpoints.
const (
	textMissingAuth   = "Missing Authorization header."
	textInvalidToken  = "Invalid token."
	textInvalidJSON   = "Invalid JSON body."
	textInvalidForm   = "Invalid form body."
	textInvalidSchema = "Invalid request body schema."
	textExists        = "Consumer already exists."
	textMissingData   = "Missing data."
	textInternal      = "Internal server error."
	textOK            = "Operation completed successfully."
)

func text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(code)
	io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, code int, v any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("could not write response: %v", err)
	}
}

func (s *Server) trmnlHelpHandler(w http.ResponseWriter, r *http.Request) {
	s.reqLog(r).Info("Redirecting to docs.")
	http.Redirect(w, r, "/docs/", http.StatusFound)
}

func (s *Server) trmnlOAuthHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		log.Info("Missing code.")
		text(w, http.StatusBadRequest, "Missing code.")
		return
	}
	callback := q.Get("installation_callback_url")
	if callback == "" {
		log.Info("Missing installation_callback_url.")
		text(w, http.StatusBadRequest, "Missing installation_callback_url.")
		return
	}

	loc := "/app/oauth/create/?code=" + url.QueryEscape(code) + "&callback_url=" + url.QueryEscape(callback)
	http.Redirect(w, r, loc, http.StatusFound)
}

func (s *Server) trmnlSettingsHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	q := r.URL.Query()

	id := q.Get("uuid")
	if id == "" {
		log.Info("Missing uuid.")
		text(w, http.StatusBadRequest, "Missing uuid.")
		return
	}
	jwt := q.Get("jwt")
	if jwt == "" {
		log.Info("Missing jwt.")
		text(w, http.StatusBadRequest, "Missing jwt.")
		return
	}

	loc := "/app/manage/" + url.PathEscape(id) + "/?token=" + url.QueryEscape(jwt)
	http.Redirect(w, r, loc, http.StatusFound)
}

// authorize checks the plugin access token a TRMNL request carries. When the
// token is missing or unknown the 401 response has already been written.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, log *logger.Logger) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		log.Info(textMissingAuth)
		text(w, http.StatusUnauthorized, textMissingAuth)
		return "", false
	}

	token := trmnl.BearerToken(header)
	ok, err := s.Store.AuthTokenExists(r.Context(), token)
	if err != nil {
		log.Error("Database query failed while verifying token: %v", err)
	}
	if err != nil || !ok {
		log.Info("%v", errInvalidAuth)
		text(w, http.StatusUnauthorized, textInvalidToken)
		return "", false
	}
	return token, true
}

type installUser struct {
	Email           *string  `json:"email"`
	FirstName       *string  `json:"first_name"`
	LastName        *string  `json:"last_name"`
	Locale          *string  `json:"locale"`
	Name            *string  `json:"name"`
	PluginSettingID *int64   `json:"plugin_setting_id"`
	TimeZone        *string  `json:"time_zone"`
	TimeZoneIANA    *string  `json:"time_zone_iana"`
	UTCOffset       *float64 `json:"utc_offset"`
	UUID            *string  `json:"uuid"`
}

func (u *installUser) valid() bool {
	for _, s := range []*string{u.Email, u.FirstName, u.LastName, u.Locale, u.Name, u.TimeZone, u.TimeZoneIANA, u.UUID} {
		if s == nil {
			return false
		}
	}
	if u.PluginSettingID == nil || u.UTCOffset == nil {
		return false
	}
	if _, err := mail.ParseAddress(*u.Email); err != nil {
		return false
	}
	_, err := uuid.Parse(*u.UUID)
	return err == nil
}

func (s *Server) installHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	token, ok := s.authorize(w, r, log)
	if !ok {
		return
	}

	var body struct {
		User *installUser `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Info(textInvalidJSON)
		text(w, http.StatusBadRequest, textInvalidJSON)
		return
	}
	if body.User == nil || !body.User.valid() {
		log.Info(textInvalidSchema)
		text(w, http.StatusBadRequest, textInvalidSchema)
		return
	}
	user := body.User

	data := store.TrmnlData{
		TrmnlID:    *user.UUID,
		Name:       *user.Name,
		Email:      *user.Email,
		SettingsID: *user.PluginSettingID,
	}
	c, err := s.Store.InstallConsumer(r.Context(), data, token)
	if errors.Is(err, store.ErrConsumerExists) {
		log.Warn("Consumer already exists with UUID: %s", data.TrmnlID)
		text(w, http.StatusBadRequest, textExists)
		return
	} else if err != nil {
		log.Error("Failed to insert consumer and trmnlData: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}

	log.Info("Consumer %s installed for %s.", c.ID, data.TrmnlID)
	text(w, http.StatusOK, textOK)
}

func (s *Server) uninstallHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	token, ok := s.authorize(w, r, log)
	if !ok {
		return
	}

	var body struct {
		UserUUID *string `json:"user_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Info(textInvalidJSON)
		text(w, http.StatusBadRequest, textInvalidJSON)
		return
	}
	if body.UserUUID == nil {
		log.Info(textInvalidSchema)
		text(w, http.StatusBadRequest, textInvalidSchema)
		return
	}
	if _, err := uuid.Parse(*body.UserUUID); err != nil {
		log.Info(textInvalidSchema)
		text(w, http.StatusBadRequest, textInvalidSchema)
		return
	}
	userID := *body.UserUUID

	err := s.Store.UninstallConsumer(r.Context(), userID, token)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("TrmnlData does not exist for userId: %s", userID)
		text(w, http.StatusBadRequest, textMissingData)
		return
	} else if err != nil {
		log.Error("Failed to delete consumer data: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}

	log.Info("Successfully uninstalled consumer with userId: %s", userID)
	text(w, http.StatusOK, textOK)
}

type generateResponse struct {
	display.Markups
	MergeVariables *mergeVariables `json:"merge_variables,omitempty"`
}

func (s *Server) renderError(w http.ResponseWriter, msg string, log *logger.Logger) {
	m, err := s.Renderer.RenderError(msg)
	if err != nil {
		log.Error("Failed to render error screen: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Markups: m}, log)
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	if _, ok := s.authorize(w, r, log); !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Info(textInvalidForm)
		text(w, http.StatusBadRequest, textInvalidForm)
		return
	}
	form := r.PostForm
	userID := form.Get("user_uuid")
	if _, err := uuid.Parse(userID); err != nil || !form.Has("trmnl[user][name]") || !form.Has("trmnl[user][time_zone_iana]") {
		log.Info(textInvalidSchema)
		text(w, http.StatusBadRequest, textInvalidSchema)
		return
	}
	name := form.Get("trmnl[user][name]")
	tzName := form.Get("trmnl[user][time_zone_iana]")

	ctx := r.Context()
	td, err := s.Store.TrmnlDataByTrmnlID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("TrmnlData does not exist for userId: %s", userID)
		text(w, http.StatusBadRequest, textMissingData)
		return
	} else if err != nil {
		log.Error("Failed to query the db for trmnlData: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}

	if name != td.Name {
		if err := s.Store.UpdateTrmnlName(ctx, userID, name); err != nil {
			log.Error("Failed to update consumer name for trmnlId %s: %v", userID, err)
		}
	}

	creds, err := s.Store.CanvasCredentials(ctx, td.ConsumerID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("No canvas token found for consumerId: %s", td.ConsumerID)
		s.renderError(w, msgNoCanvasCredentials, log)
		return
	} else if err != nil {
		log.Error("Failed to query the db for canvasToken: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}

	host, err := s.Cipher.DecryptString(creds.EncryptedServer)
	if err != nil {
		log.Error("Failed to decrypt canvas server for consumerId %s: %v", td.ConsumerID, errors.Join(errIncomplete, err))
		s.renderError(w, msgNoCanvasCredentials, log)
		return
	}
	token, err := s.Cipher.DecryptString(creds.EncryptedToken)
	if err != nil {
		log.Error("Failed to decrypt canvas token for consumerId %s: %v", td.ConsumerID, errors.Join(errIncomplete, err))
		s.renderError(w, msgNoCanvasCredentials, log)
		return
	}

	data, err := s.Canvas.FetchAll(ctx, canvas.Config{BaseURL: s.CanvasURL(host), Token: token})
	if err != nil {
		var fe *canvas.FetchError
		location := "unknown"
		if errors.As(err, &fe) {
			location = string(fe.Location)
		}
		log.Warn("Failed to fetch canvas data: %s, %v", location, err)
		s.renderError(w, fmt.Sprintf(msgFetchFailed, location), log)
		return
	}

	tz, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warn("Unknown time zone %q, using UTC.", tzName)
		tz = time.UTC
	}

	m, err := s.Renderer.RenderAll(data, s.Now(), tz)
	if err != nil {
		log.Error("Failed to render screens: %v", err)
		text(w, http.StatusInternalServerError, textInternal)
		return
	}
	vars := genMergeVariables(data)
	writeJSON(w, http.StatusOK, generateResponse{Markups: m, MergeVariables: &vars}, log)
}
