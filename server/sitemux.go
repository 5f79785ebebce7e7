package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"canvastrmnl/errors"
	"canvastrmnl/logger"
	"canvastrmnl/store"
)

// The procedure API behind /api/performAction. A request names a procedure
// and carries its data; the reply is either {type:"okay",data} or
// {type:"error",data:<reason>}. Malformed requests get a procedureError.

type result struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func okay(data any) result {
	return result{Type: "okay", Data: data}
}

func failure(reason string) result {
	return result{Type: "error", Data: reason}
}

type procedureError struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

var errSchema = errors.New("request data does not match the procedure schema")

type procedure func(s *Server, ctx context.Context, log *logger.Logger, data json.RawMessage) (result, error)

var procedures = map[string]procedure{
	"createConsumer":               (*Server).createConsumerProc,
	"fetchConsumerData":            (*Server).fetchConsumerDataProc,
	"updateConsumerCanvasSettings": (*Server).updateCanvasSettingsProc,
}

func (s *Server) performActionHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	fail := func(reason string) {
		writeJSON(w, http.StatusBadRequest, procedureError{Type: "procedureError", Data: reason}, log)
	}

	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(reasonInvalidJSON)
		return
	}
	obj, ok := body.(map[string]any)
	if !ok {
		log.Info("Invalid procedure object.")
		fail(reasonProcedureSchema)
		return
	}
	name, ok := obj["procedure"].(string)
	if !ok {
		log.Info("Invalid procedure object.")
		fail(reasonProcedureSchema)
		return
	}
	proc, ok := procedures[name]
	if !ok {
		log.Info("Unknown procedure '%s'.", name)
		fail(reasonProcedureNotFound)
		return
	}

	// Absent data decodes as null and fails the procedure's own schema.
	data, err := json.Marshal(obj["data"])
	if err != nil {
		fail(reasonSchemaValidation)
		return
	}

	log = log.With("procedure", name)
	log.Info("Handled by procedure '%s'.", name)
	res, err := proc(s, r.Context(), log, data)
	if errors.Is(err, errSchema) {
		log.Info("Invalid request data for procedure.")
		fail(reasonSchemaValidation)
		return
	} else if err != nil {
		log.Error("%v", err)
		fail(reasonSchemaValidation)
		return
	}
	writeJSON(w, http.StatusOK, res, log)
}

func decodeData(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.NewError("server.decodeData", err.Error(), errSchema)
	}
	return nil
}

func isUUID(s *string) bool {
	if s == nil {
		return false
	}
	_, err := uuid.Parse(*s)
	return err == nil
}

func isURL(s *string) bool {
	if s == nil {
		return false
	}
	u, err := url.Parse(*s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// createConsumer

func (s *Server) createConsumerProc(ctx context.Context, log *logger.Logger, raw json.RawMessage) (result, error) {
	var req struct {
		Code *string `json:"code"`
	}
	if err := decodeData(raw, &req); err != nil {
		return result{}, err
	}
	if req.Code == nil {
		return result{}, errSchema
	}
	if reason := s.createConsumer(ctx, log, *req.Code); reason != "" {
		return failure(reason), nil
	}
	return okay(nil), nil
}

// createConsumer exchanges an installation code for a plugin access token and
// records the token, so the install webhook that follows is accepted.
func (s *Server) createConsumer(ctx context.Context, log *logger.Logger, code string) string {
	token, err := s.Trmnl.ExchangeCode(ctx, code)
	if err != nil {
		log.Info("Failed to fetch token from Trmnl: %v", err)
		return reasonTrmnl
	}
	if err := s.Store.AddAuthToken(ctx, token); err != nil {
		log.Error("Failed to insert token: %v", err)
		return reasonDatabaseInsert
	}
	return ""
}

// fetchConsumerData

type consumerData struct {
	Name       string `json:"name"`
	SettingsID int64  `json:"settingsId"`
	TrmnlID    string `json:"trmnlId"`
}

func (s *Server) fetchConsumerDataProc(ctx context.Context, log *logger.Logger, raw json.RawMessage) (result, error) {
	var req struct {
		AuthToken *string `json:"authToken"`
		TrmnlID   *string `json:"trmnlId"`
	}
	if err := decodeData(raw, &req); err != nil {
		return result{}, err
	}
	if req.AuthToken == nil || !isUUID(req.TrmnlID) {
		return result{}, errSchema
	}
	c, reason := s.fetchConsumerData(ctx, log, *req.AuthToken, *req.TrmnlID)
	if reason != "" {
		return failure(reason), nil
	}
	return okay(c), nil
}

// verifyUser checks that authToken is a TRMNL-issued JWT for trmnlID and
// returns the failure reason otherwise.
func (s *Server) verifyUser(ctx context.Context, log *logger.Logger, authToken, trmnlID string) string {
	err := s.Keys.VerifyFor(ctx, authToken, trmnlID)
	if errors.Is(err, errors.ErrSubjectMismatch) {
		log.Warn("JWT sub does not match trmnlId: %v", err)
		return reasonAuthorization
	} else if err != nil {
		log.Info("Invalid token: %v", err)
		return reasonAuthentication
	}
	return ""
}

func (s *Server) fetchConsumerData(ctx context.Context, log *logger.Logger, authToken, trmnlID string) (consumerData, string) {
	if reason := s.verifyUser(ctx, log, authToken, trmnlID); reason != "" {
		return consumerData{}, reason
	}

	td, err := s.Store.TrmnlDataByTrmnlID(ctx, trmnlID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("trmnlData does not exist for trmnlId: %s", trmnlID)
		return consumerData{}, reasonConsumerNotFound
	} else if err != nil {
		log.Error("Failed to query trmnlData for trmnlId %s: %v", trmnlID, err)
		return consumerData{}, reasonDatabaseQuery
	}

	return consumerData{
		Name:       td.Name,
		SettingsID: td.SettingsID,
		TrmnlID:    td.TrmnlID,
	}, ""
}

// updateConsumerCanvasSettings

func (s *Server) updateCanvasSettingsProc(ctx context.Context, log *logger.Logger, raw json.RawMessage) (result, error) {
	var req struct {
		AuthToken         *string `json:"authToken"`
		CanvasAccessToken *string `json:"canvasAccessToken"`
		CanvasServer      *string `json:"canvasServer"`
		TrmnlID           *string `json:"trmnlId"`
	}
	if err := decodeData(raw, &req); err != nil {
		return result{}, err
	}
	if req.AuthToken == nil || req.CanvasAccessToken == nil || !isURL(req.CanvasServer) || !isUUID(req.TrmnlID) {
		return result{}, errSchema
	}
	reason := s.updateCanvasSettings(ctx, log, *req.AuthToken, *req.TrmnlID, *req.CanvasServer, *req.CanvasAccessToken)
	if reason != "" {
		return failure(reason), nil
	}
	return okay(nil), nil
}

// updateCanvasSettings stores the hostname of server and the access token,
// both encrypted, for the consumer of trmnlID.
func (s *Server) updateCanvasSettings(ctx context.Context, log *logger.Logger, authToken, trmnlID, server, accessToken string) string {
	if reason := s.verifyUser(ctx, log, authToken, trmnlID); reason != "" {
		return reason
	}

	td, err := s.Store.TrmnlDataByTrmnlID(ctx, trmnlID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("trmnlData does not exist for trmnlId: %s", trmnlID)
		return reasonConsumerNotFound
	} else if err != nil {
		log.Error("Failed to query trmnlData for trmnlId %s: %v", trmnlID, err)
		return reasonDatabaseQuery
	}

	u, err := url.Parse(server)
	if err != nil || u.Hostname() == "" {
		log.Warn("Invalid canvas url: %s.", server)
		return reasonInvalidURL
	}

	encServer, err := s.Cipher.EncryptString(u.Hostname())
	if err != nil {
		log.Error("Failed to encrypt canvas server: %v", err)
		return reasonDatabaseInsert
	}
	encToken, err := s.Cipher.EncryptString(accessToken)
	if err != nil {
		log.Error("Failed to encrypt canvas token: %v", err)
		return reasonDatabaseInsert
	}

	err = s.Store.PutCanvasCredentials(ctx, store.CanvasCredentials{
		ConsumerID:      td.ConsumerID,
		EncryptedServer: encServer,
		EncryptedToken:  encToken,
	})
	if err != nil {
		log.Error("Failed to update canvas settings: %v", err)
		return reasonDatabaseInsert
	}
	return ""
}
