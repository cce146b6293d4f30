// Package api is the local control surface: a small HTTP server for
// driving the bot and inspecting its state. It talks to the
// orchestrator only through the command bridge.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatpilot/chatpilot/internal/bridge"
	"github.com/chatpilot/chatpilot/internal/memory"
	"github.com/chatpilot/chatpilot/internal/store"
)

// StatusFunc returns a point-in-time snapshot for the status endpoint.
type StatusFunc func() Status

// Status is the bot state exposed over the API.
type Status struct {
	Running        bool          `json:"running"`
	Paused         bool          `json:"paused"`
	Partnership    bool          `json:"partnership"`
	PaymentPhase   string        `json:"payment_phase"`
	ActiveLanguage string        `json:"active_language"`
	Memory         memory.Status `json:"memory"`
}

type Server struct {
	router *chi.Mux
	port   int

	bridge *bridge.Bridge
	status StatusFunc
	db     *store.Store
}

func NewServer(port int, b *bridge.Bridge, status StatusFunc, db *store.Store) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		bridge: b,
		status: status,
		db:     db,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/bot/status", s.getStatus)
	router.Post("/api/v1/bot/command", s.postCommand)
	router.Get("/api/v1/nicks/{list}", s.getNicks)
	router.Post("/api/v1/nicks/{list}", s.postNick)
	router.Delete("/api/v1/nicks/{list}/{nick}", s.deleteNick)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("control API starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// CommandRequest is the POST body for /api/v1/bot/command.
type CommandRequest struct {
	Kind string `json:"kind"`
	Arg  string `json:"arg,omitempty"`
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	kind := bridge.CommandKind(req.Kind)
	switch kind {
	case bridge.CommandStart, bridge.CommandPause, bridge.CommandResume,
		bridge.CommandStop, bridge.CommandClearMemory, bridge.CommandSetLanguage,
		bridge.CommandReloadNicks:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown command %q", req.Kind))
		return
	}

	if !s.bridge.Send(bridge.Command{Kind: kind, Arg: req.Arg}) {
		writeError(w, http.StatusServiceUnavailable, "command buffer full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": req.Kind})
}

func validList(list string) bool {
	return list == "target" || list == "ignore" || list == "suggested"
}

func (s *Server) getNicks(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	if !validList(list) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown list %q", list))
		return
	}

	nicks, err := s.db.Nicks(list)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if nicks == nil {
		nicks = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": list, "nicks": nicks})
}

// NickRequest is the POST body for the nick list endpoints.
type NickRequest struct {
	Nick string `json:"nick"`
}

func (s *Server) postNick(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	if !validList(list) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown list %q", list))
		return
	}

	var req NickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Nick == "" {
		writeError(w, http.StatusBadRequest, "nick is required")
		return
	}

	if err := s.db.AddNick(req.Nick, list); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notifyNickChange(list)
	writeJSON(w, http.StatusCreated, map[string]string{"added": req.Nick, "list": list})
}

// notifyNickChange asks the orchestrator to re-read the persisted
// lists, so edits take effect without a restart. The suggested list
// never feeds the resolver.
func (s *Server) notifyNickChange(list string) {
	if list == "suggested" {
		return
	}
	if !s.bridge.Send(bridge.Command{Kind: bridge.CommandReloadNicks}) {
		slog.Warn("nick reload command dropped, buffer full")
	}
}

func (s *Server) deleteNick(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	nick := chi.URLParam(r, "nick")
	if !validList(list) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown list %q", list))
		return
	}

	if err := s.db.RemoveNick(nick, list); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notifyNickChange(list)
	writeJSON(w, http.StatusOK, map[string]string{"removed": nick, "list": list})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
