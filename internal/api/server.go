package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
	"github.com/hyprpranav/Visitor-Management-System/internal/config"
	"github.com/hyprpranav/Visitor-Management-System/internal/console"
)

// StatusSource reports backend reachability.
type StatusSource interface {
	Status() backend.ConnectionStatus
}

// Options carries the server's collaborators. Nil fields get defaults.
type Options struct {
	Status   StatusSource
	Logs     *LogBuffer
	Hub      *Hub
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	console  *console.Console
	status   StatusSource
	logs     *LogBuffer
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   chi.Router
	http     *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, c *console.Console, opts Options) *Server {
	s := &Server{
		config:   cfg,
		console:  c,
		status:   opts.Status,
		logs:     opts.Logs,
		hub:      opts.Hub,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
		router:   chi.NewRouter(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.logs == nil {
		s.logs = NewLogBuffer(cfg.Console.LogCapacity)
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	c.Subscribe(s.hub.Publish)

	s.setupRoutes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Health and metrics
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Console pages
	r.Get("/", s.handleIndex)
	r.Get("/section/{name}", s.handleSection)
	r.Get("/partials/{name}", s.handlePartial)
	r.Get("/preregister", s.handlePreRegisterPage)

	// Form submissions
	r.Post("/checkin", s.handleCheckIn)
	r.Post("/checkout", s.handleCheckOut)
	r.Post("/preregister", s.handlePreRegister)
	r.Post("/feedback", s.handleFeedback)
	r.Post("/qr", s.handleGenerateQR)

	// Admin
	r.Get("/admin/search", s.handleAdminSearch)
	r.Get("/notifications", s.handleOpenNotifications)
	r.Get("/notifications/close", s.handleCloseNotifications)
	r.Post("/notifications/{id}/dismiss", s.handleDismiss)
	r.Post("/preregistrations/{id}/approve", s.handleDecision(s.console.Approve))
	r.Post("/preregistrations/{id}/decline", s.handleDecision(s.console.Decline))

	// Downloads
	r.Get("/qr.png", s.handleQRImage)
	r.Get("/export", s.handleExport)

	// JSON and push
	r.Get("/api/state", s.handleState)
	r.Get("/api/logs", s.handleLogs)
	r.Delete("/api/logs", s.handleClearLogs)
	r.Handle("/ws", s.hub)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Logs returns the activity log buffer.
func (s *Server) Logs() *LogBuffer {
	return s.logs
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	s.logger.Info("console listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown disconnects push clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) backendStatus() backend.ConnectionStatus {
	if s.status == nil {
		return backend.ConnectionStatus{}
	}
	return s.status.Status()
}

func (s *Server) pageData() pageData {
	return pageData{
		Snapshot: s.console.Snapshot(),
		Backend:  s.backendStatus(),
		Endpoint: s.config.Backend.Endpoint,
	}
}

func (s *Server) render(w http.ResponseWriter, name string) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, s.pageData()); err != nil {
		s.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ActionResponse is the JSON reply to a console action.
type ActionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// respond finishes a console action. Browsers are sent back to the console;
// JSON clients get the outcome. Failures are already on the notification
// list either way.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		res := ActionResponse{Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"backend": s.backendStatus(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("section"); name != "" {
		if err := s.console.ShowSection(r.Context(), name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.render(w, "page")
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	if err := s.console.ShowSection(r.Context(), chi.URLParam(r, "name")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.respond(w, r, nil)
}

func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !partials[name] {
		http.NotFound(w, r)
		return
	}
	s.render(w, name)
}

func (s *Server) handlePreRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.console.StartPreRegistration(r.URL.Query().Get("contact"))
	s.render(w, "page")
}

func checkbox(r *http.Request, name string) bool {
	switch strings.ToLower(r.FormValue(name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	err := s.console.CheckIn(r.Context(), console.CheckInForm{
		Name:        r.FormValue("name"),
		Contact:     r.FormValue("contact"),
		Email:       r.FormValue("email"),
		Company:     r.FormValue("company"),
		Purpose:     r.FormValue("purpose"),
		NDASigned:   checkbox(r, "nda_signed"),
		EntryMethod: r.FormValue("entry_method"),
	})
	s.respond(w, r, err)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	err := s.console.CheckOut(r.Context(), console.CheckOutForm{Contact: r.FormValue("contact")})
	s.respond(w, r, err)
}

func (s *Server) handlePreRegister(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	err := s.console.PreRegister(r.Context(), console.PreRegistrationForm{
		Name:      r.FormValue("name"),
		Contact:   r.FormValue("contact"),
		Email:     r.FormValue("email"),
		Company:   r.FormValue("company"),
		Purpose:   r.FormValue("purpose"),
		VisitDate: r.FormValue("visit_date"),
		VisitTime: r.FormValue("visit_time"),
		NDASigned: checkbox(r, "nda_signed"),
	})
	s.respond(w, r, err)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	err := s.console.SubmitFeedback(r.Context(), console.FeedbackForm{
		Type:    r.FormValue("type"),
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Message: r.FormValue("message"),
	})
	s.respond(w, r, err)
}

func (s *Server) handleGenerateQR(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	s.respond(w, r, s.console.GenerateQR(r.Context(), r.FormValue("contact")))
}

func (s *Server) handleAdminSearch(w http.ResponseWriter, r *http.Request) {
	err := s.console.SearchAdmin(r.Context(), r.URL.Query().Get("search"))
	if errors.Is(err, console.ErrSuperseded) {
		err = nil
	}
	s.respond(w, r, err)
}

func (s *Server) handleOpenNotifications(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.console.OpenNotifications(r.Context()))
}

func (s *Server) handleCloseNotifications(w http.ResponseWriter, r *http.Request) {
	s.console.CloseNotifications()
	s.respond(w, r, nil)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.console.Dismiss(chi.URLParam(r, "id")) {
		http.NotFound(w, r)
		return
	}
	s.respond(w, r, nil)
}

func (s *Server) handleDecision(decide func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid pre-registration id", http.StatusBadRequest)
			return
		}
		s.respond(w, r, decide(r.Context(), id))
	}
}

func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.console.QRImage()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	file, err := s.console.Export(r.Context())
	if err != nil {
		s.respond(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	_, _ = w.Write(file.Data)
}

// StateResponse is the JSON view of the console.
type StateResponse struct {
	console.Snapshot
	Backend backend.ConnectionStatus `json:"backend"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Snapshot: s.console.Snapshot(),
		Backend:  s.backendStatus(),
	})
}

// handleLogs returns buffered log lines, filtered by ?level=warn,error
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if q := r.URL.Query().Get("level"); q != "" && q != "all" {
		levels = strings.Split(q, ",")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": s.logs.Entries(levels),
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	w.WriteHeader(http.StatusNoContent)
}
