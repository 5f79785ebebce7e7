package server

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"canvastrmnl/logger"
)

// Generate the HTML page (and write that data to http.ResponseWriter).
func (s *Server) genPage(w http.ResponseWriter, code int, data pageData, log *logger.Logger) {
	w.WriteHeader(code)
	if err := s.templates.ExecuteTemplate(w, "page", data); err != nil {
		log.Debug("template execution failed: %v", err)
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	s.genPage(w, http.StatusOK, genHomePage(s.Trmnl.BaseURL), s.reqLog(r))
}

func (s *Server) docsHandler(w http.ResponseWriter, r *http.Request) {
	s.genPage(w, http.StatusOK, genDocsPage(), s.reqLog(r))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.genPage(w, http.StatusNotFound, statusNotFoundData, s.reqLog(r))
}

// reasonStatus maps a procedure failure to the status of the page showing it.
func reasonStatus(reason string) int {
	switch reason {
	case reasonAuthentication, reasonAuthorization:
		return http.StatusForbidden
	case reasonConsumerNotFound:
		return http.StatusNotFound
	case reasonTrmnl:
		return http.StatusBadGateway
	case reasonInvalidURL:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// oauthCreateHandler finishes an installation: the code TRMNL handed over is
// exchanged for an access token and the user is sent back to TRMNL.
func (s *Server) oauthCreateHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	q := r.URL.Query()

	callback := q.Get("callback_url")
	if callback == "" {
		s.genPage(w, http.StatusBadRequest, genOAuthPage("Error", "No callback URL provided.", ""), log)
		return
	}
	cb, err := url.Parse(callback)
	if err != nil || (cb.Scheme != "https" && cb.Scheme != "http") || cb.Host == "" {
		s.genPage(w, http.StatusBadRequest, genOAuthPage("Error", "Invalid callback URL.", ""), log)
		return
	}
	code := q.Get("code")
	if code == "" {
		s.genPage(w, http.StatusBadRequest, genOAuthPage("Error", "No code provided.", ""), log)
		return
	}

	if reason := s.createConsumer(r.Context(), log, code); reason != "" {
		s.genPage(w, reasonStatus(reason), genOAuthPage("Error", "Error: "+reason+".", ""), log)
		return
	}

	log.Info("Plugin token created, returning to TRMNL.")
	http.Redirect(w, r, cb.String(), http.StatusFound)
}

// manageHandler shows the settings of one installation and, on POST, saves
// the Canvas server and access token submitted from it.
func (s *Server) manageHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)
	trmnlID := r.PathValue("uuid")

	token := r.URL.Query().Get("token")
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.genPage(w, http.StatusBadRequest, errorPage("Error", "Invalid form body."), log)
			return
		}
		token = r.PostForm.Get("token")
	}
	if token == "" {
		s.genPage(w, http.StatusBadRequest, errorPage("Error", "No auth token provided in the URL."), log)
		return
	}

	c, reason := s.fetchConsumerData(r.Context(), log, token, trmnlID)
	if reason != "" {
		s.genPage(w, reasonStatus(reason), errorPage("Error", "Error: "+reason+"."), log)
		return
	}

	page := genManagePage(s.Trmnl.BaseURL, c, token)
	if r.Method != http.MethodPost {
		s.genPage(w, http.StatusOK, page, log)
		return
	}

	md := &page.Body.ManageData
	domain := normalizeDomain(r.PostForm.Get("canvas_server"))
	accessToken := strings.TrimSpace(r.PostForm.Get("canvas_token"))
	md.CanvasServer = domain

	switch {
	case domain == "":
		md.Error = "Invalid canvas server domain."
	case accessToken == "":
		md.Error = "Missing Canvas access token."
	default:
		md.TokenLink = "https://" + domain + "/profile/settings"
		if reason := s.updateCanvasSettings(r.Context(), log, token, trmnlID, "https://"+domain, accessToken); reason != "" {
			md.Error = "Error: " + reason + "."
		} else {
			md.Success = true
		}
	}

	code := http.StatusOK
	if md.Error != "" {
		code = http.StatusBadRequest
	}
	s.genPage(w, code, page, log)
}

// Handle assets - CSS, icons, etc. Responses carry a content hash as ETag.
func (s *Server) assetHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/assets/")
	if !fs.ValidPath(name) || name == "." {
		pageHeaders(s.notFoundHandler).ServeHTTP(w, r)
		return
	}

	b, err := fs.ReadFile(s.Assets, name)
	if err != nil {
		pageHeaders(s.notFoundHandler).ServeHTTP(w, r)
		return
	}

	sum := sha256.Sum256(b)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	for _, tag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(tag) == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	mimeType := mime.TypeByExtension(path.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(b)
}
