// Package server exposes the activation engine and the skill registry over
// a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/pkg/errors"
)

const maxRequestBytes = 1 << 20

// Activator runs activation requests
type Activator interface {
	Activate(ctx context.Context, req activation.Request) (*activation.Response, error)
	Diagnose(ctx context.Context, req activation.Request) (*activation.Diagnosis, error)
}

// SkillStore serves and reloads registry snapshots
type SkillStore interface {
	Current() *skills.Registry
	Reload(ctx context.Context) (*skills.Registry, error)
}

// Server represents the HTTP API server
type Server struct {
	router *mux.Router
	engine Activator
	store  SkillStore
	config *ServerConfig
	server *http.Server
}

// ServerConfig holds the configuration for the HTTP server
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}

// NewServer creates a new API server
func NewServer(config *ServerConfig, engine Activator, store SkillStore) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if engine == nil || store == nil {
		return nil, errors.New("engine and store are required")
	}

	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		store:  store,
		config: config,
	}
	s.setupRoutes()

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/activate", s.handleActivate).Methods("POST")
	api.HandleFunc("/diagnose", s.handleDiagnose).Methods("POST")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id:.+}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// preflight requests only need the CORS headers
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SkillSummary is the listing view of a skill
type SkillSummary struct {
	ID               string          `json:"id"`
	DisplayName      string          `json:"displayName"`
	Description      string          `json:"description"`
	Category         skills.Category `json:"category"`
	Keywords         []string        `json:"keywords"`
	FilePatterns     []string        `json:"filePatterns"`
	TargetExtensions []string        `json:"targetExtensions,omitempty"`
	Dependencies     []string        `json:"dependencies,omitempty"`
	EstimatedSize    int             `json:"estimatedSize"`
	Origin           string          `json:"origin"`
}

// RegistryInfo describes a registry snapshot
type RegistryInfo struct {
	Version  uint64         `json:"version"`
	LoadedAt time.Time      `json:"loadedAt"`
	Skills   []SkillSummary `json:"skills"`
	Issues   []string       `json:"issues,omitempty"`
}

// Summarize builds the listing view of a skill
func Summarize(s *skills.Skill) SkillSummary {
	return SkillSummary{
		ID:               s.ID,
		DisplayName:      s.DisplayName,
		Description:      s.Description,
		Category:         s.Category,
		Keywords:         s.Keywords,
		FilePatterns:     s.FilePatterns,
		TargetExtensions: s.TargetExtensions(),
		Dependencies:     s.Dependencies,
		EstimatedSize:    s.EstimatedSize,
		Origin:           s.Origin,
	}
}

// DescribeRegistry builds the listing view of a snapshot, skills grouped
// by category precedence
func DescribeRegistry(reg *skills.Registry) RegistryInfo {
	info := RegistryInfo{
		Version:  reg.Version(),
		LoadedAt: reg.LoadedAt(),
		Skills:   make([]SkillSummary, 0, reg.Len()),
	}
	for _, s := range reg.ByCategory() {
		info.Skills = append(info.Skills, Summarize(s))
	}
	for _, issue := range reg.Issues() {
		info.Issues = append(info.Issues, issue.Error())
	}
	return info
}

// handleActivate handles POST /api/activate
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.engine.Activate(r.Context(), req)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "activation failed", err)
		return
	}

	s.writeJSONResponse(w, resp)
}

// handleDiagnose handles POST /api/diagnose
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	diag, err := s.engine.Diagnose(r.Context(), req)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "diagnosis failed", err)
		return
	}

	s.writeJSONResponse(w, diag)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (activation.Request, bool) {
	var req activation.Request

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return req, false
	}

	return req, true
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, DescribeRegistry(s.store.Current()))
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	skill, ok := s.store.Current().LookupRef(id)
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("skill %q not found", id), nil)
		return
	}

	s.writeJSONResponse(w, skill)
}

// handleReload handles POST /api/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	reg, err := s.store.Reload(r.Context())
	if err != nil {
		var timeoutErr *skills.ReloadTimeoutError
		status := http.StatusBadGateway
		if errors.As(err, &timeoutErr) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, status, err.Error(), err)
		return
	}

	s.writeJSONResponse(w, DescribeRegistry(reg))
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := s.store.Current()
	s.writeJSONResponse(w, map[string]any{
		"status":          "ok",
		"version":         version.Get().Version,
		"registryVersion": reg.Version(),
		"skills":          reg.Len(),
	})
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err != nil && message != err.Error() {
		response["detail"] = err.Error()
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Start starts the server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Starting skill server on http://%s", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("HTTP server error")
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the server immediately
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
