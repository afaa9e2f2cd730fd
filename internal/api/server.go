// Package api provides the HTTP and WebSocket control surface for the
// macro engine.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"macrocam/internal/config"
	"macrocam/internal/engine"
)

// Server exposes the engine over HTTP for local tooling and over
// WebSocket for live state/diagnostics streaming.
type Server struct {
	configMgr *config.Manager
	eng       *engine.Engine
	token     string
	wsMgr     *WSManager
}

// NewServer creates an API server. token may be empty to disable auth.
func NewServer(configMgr *config.Manager, eng *engine.Engine, token string) *Server {
	s := &Server{
		configMgr: configMgr,
		eng:       eng,
		token:     token,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Notifier returns the engine notifier that fans events out to connected
// WebSocket clients.
func (s *Server) Notifier() engine.Notifier {
	return s.wsMgr
}

// Start runs the server on the given port. Blocking.
func (s *Server) Start(port int) error {
	go s.wsMgr.start()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/macros", s.handleMacros)
	mux.HandleFunc("/api/record/start", s.handleRecordStart)
	mux.HandleFunc("/api/record/stop", s.handleRecordStop)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	// tcp4 avoids IPv6-only binding issues on Windows
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("API: starting server on %s", addr)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(mux)),
	}
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// recoverMiddleware prevents handler panics from crashing the process
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic recovered: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware verifies the bearer token when one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if s.token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"mode":     string(s.eng.Mode()),
		"settings": s.configMgr.Settings(),
	})
}

// handleMacros handles GET (list) and DELETE /api/macros?slug=<slug>
func (s *Server) handleMacros(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, s.eng.List())
	case "DELETE":
		slug := r.URL.Query().Get("slug")
		if slug == "" {
			http.Error(w, "Missing slug parameter", http.StatusBadRequest)
			return
		}
		if err := s.eng.Delete(slug); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRecordStart handles POST /api/record/start
func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.eng.StartRecording(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "recording"})
}

// handleRecordStop handles POST /api/record/stop?name=<name>
func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path, err := s.eng.StopRecording(r.URL.Query().Get("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "path": path})
}

// handlePlay handles POST /api/play?slug=<slug>
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, "Missing slug parameter", http.StatusBadRequest)
		return
	}
	if err := s.eng.Play(slug); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "playing", "slug": slug})
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.eng.StopPlayback()
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleAnalyze handles GET /api/analyze?slug=<slug>
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, "Missing slug parameter", http.StatusBadRequest)
		return
	}
	diag, err := s.eng.Analyze(slug)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"report": diag.Report,
		"issues": diag.Issues,
	})
}

// handleSettings handles GET (read) and POST (update) for tuning settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, s.configMgr.Settings())
	case "POST":
		var set config.Settings
		if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
			http.Error(w, "Invalid settings data", http.StatusBadRequest)
			return
		}
		applied, err := s.configMgr.UpdateSettings(set)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, applied)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCalibration handles GET (active profile), POST (upsert) and
// PUT /api/calibration?name=<name> (set active)
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		name, cal := s.configMgr.ActiveCalibration()
		writeJSON(w, map[string]any{"active": name, "calibration": cal})
	case "POST":
		var cal config.Calibration
		if err := json.NewDecoder(r.Body).Decode(&cal); err != nil {
			http.Error(w, "Invalid calibration data", http.StatusBadRequest)
			return
		}
		makeActive := r.URL.Query().Get("activate") == "true"
		if err := s.configMgr.UpsertCalibration(cal, makeActive); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	case "PUT":
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Missing name parameter", http.StatusBadRequest)
			return
		}
		cal, err := s.configMgr.SetActiveCalibration(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, cal)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
