// Package server serves the TRMNL plugin endpoints, the procedure API used by
// the settings pages, and the pages themselves.
package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"canvastrmnl/canvas"
	"canvastrmnl/crypt"
	"canvastrmnl/display"
	"canvastrmnl/errors"
	"canvastrmnl/logger"
	"canvastrmnl/store"
	"canvastrmnl/trmnl"
)

//go:embed templates
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// How long /dev/long-polling/ holds a request.
const longPollTimeout = 5 * time.Second

type Server struct {
	Store    store.Store
	Cipher   *crypt.Cipher
	Canvas   *canvas.Client
	Trmnl    *trmnl.Client
	Keys     *trmnl.KeySet
	Renderer *display.Renderer
	Now      func() time.Time

	// Dev enables the /dev/ routes.
	Dev bool
	// Assets is served under /assets/.
	Assets fs.FS
	// CanvasURL turns a stored Canvas hostname into the API base URL.
	CanvasURL func(host string) *url.URL
	LongPoll  time.Duration

	templates *template.Template
	log       *logger.Logger
}

func canvasHTTPS(host string) *url.URL {
	return &url.URL{Scheme: "https", Host: host}
}

// New returns a server with embedded templates and assets and the default
// Canvas client, renderer and clock.
func New(st store.Store, c *crypt.Cipher, tc *trmnl.Client, ks *trmnl.KeySet) (*Server, error) {
	tmpl, err := loadTmpl(templateFS)
	if err != nil {
		return nil, errors.NewError("server.New", "cannot load HTML templates", err)
	}
	assets, err := fs.Sub(assetFS, "assets")
	if err != nil {
		return nil, errors.NewError("server.New", "cannot load assets", err)
	}
	return &Server{
		Store:     st,
		Cipher:    c,
		Canvas:    canvas.NewClient(nil),
		Trmnl:     tc,
		Keys:      ks,
		Renderer:  display.NewRenderer(nil),
		Now:       time.Now,
		Assets:    assets,
		CanvasURL: canvasHTTPS,
		LongPoll:  longPollTimeout,
		templates: tmpl,
		log:       logger.Named("server"),
	}, nil
}

func loadTmpl(fsys fs.FS) (*template.Template, error) {
	required := []string{
		"body/docs",
		"body/error",
		"body/home",
		"body/manage",
		"body/oauth",
		"components/footer",
		"head",
		"page",
	}
	for i := range required {
		required[i] = path.Join("templates", required[i]+".tmpl")
	}
	var files []string
	err := fs.WalkDir(fsys, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && path.Ext(p) == ".tmpl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, file := range required {
		if !slices.Contains(files, file) {
			missing = append(missing, file)
		}
	}
	if len(missing) != 0 {
		return nil, errors.NewError("server.loadTmpl", "missing templates", errors.New(strings.Join(missing, ", ")))
	}
	funcMap := template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}
	return template.New("").Funcs(funcMap).ParseFS(fsys, files...)
}

// Handler returns the routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /trmnl/help/{$}", s.trmnlHelpHandler)
	mux.HandleFunc("GET /trmnl/oauth/new/{$}", s.trmnlOAuthHandler)
	mux.HandleFunc("GET /trmnl/settings/{$}", s.trmnlSettingsHandler)
	mux.HandleFunc("POST /trmnl/webhook/install/{$}", s.installHandler)
	mux.HandleFunc("POST /trmnl/webhook/uninstall/{$}", s.uninstallHandler)
	mux.HandleFunc("POST /trmnl/generate/{$}", s.generateHandler)

	mux.HandleFunc("POST /api/performAction", s.performActionHandler)

	mux.HandleFunc("GET /assets/", s.assetHandler)

	mux.Handle("GET /{$}", pageHeaders(s.homeHandler))
	mux.Handle("GET /docs/{$}", pageHeaders(s.docsHandler))
	mux.Handle("GET /app/oauth/create/{$}", pageHeaders(s.oauthCreateHandler))
	mux.Handle("GET /app/manage/{uuid}/{$}", pageHeaders(s.manageHandler))
	mux.Handle("POST /app/manage/{uuid}/{$}", pageHeaders(s.manageHandler))

	if s.Dev {
		mux.HandleFunc("POST /dev/generate/{$}", s.devGenerateHandler)
		mux.HandleFunc("GET /dev/long-polling/{$}", s.devLongPollHandler)
		mux.HandleFunc("GET /dev/preview.png", s.devPreviewHandler)
	}

	mux.Handle("/", pageHeaders(s.notFoundHandler))
	return mux
}

// pageHeaders sets the headers every HTML page is served with.
func pageHeaders(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Security-Policy", "script-src 'self'; object-src 'self'; base-uri 'self'; frame-ancestors 'none';")
		hdr.Set("Content-Type", "text/html; charset=utf-8")
		hdr.Set("Cross-Origin-Opener-Policy", "same-origin")
		hdr.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		h(w, r)
	})
}

func (s *Server) reqLog(r *http.Request) *logger.Logger {
	return s.log.With("method", r.Method, "path", r.URL.Path)
}

// Run serves h until the listener fails.
func Run(addr string, tls bool, cert, key string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if tls {
		logger.Info("Running on %s", addr)
		return srv.ListenAndServeTLS(cert, key)
	}
	logger.Info("Server started on http://127.0.0.1%s/.", addr)
	return srv.ListenAndServe()
}
