package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sightsrobotics/console/internal/health"
	"github.com/sightsrobotics/console/internal/theme"
)

// ErrNotFound is returned by a [Backend] for unknown widget names.
var ErrNotFound = errors.New("not found")

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 10

// KeySession receives raw key reports from one connected input, and
// releases everything it still holds on Close.
type KeySession interface {
	Feed(key string, down bool)
	Close()
}

// Binding describes one logical action for the dashboard's help overlay.
type Binding struct {
	Action      string   `json:"action"`
	Description string   `json:"description"`
	Keys        []string `json:"keys"`
	Holdable    bool     `json:"holdable"`
}

// Backend is the console state the control routes act on.
type Backend interface {
	OpenInput(name string) KeySession
	Bindings() []Binding
	Speed() int
	ResetSpeed() int
	Mount(name string) error
	Unmount(name string) error
	Power(ctx context.Context, action string) error
	Connection() health.Sample
	Theme() *theme.State
}

type errorResponse struct {
	Error string `json:"error"`
}

type speedResponse struct {
	Speed int `json:"speed"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

// speed bounds echoed to the dashboard slider
const (
	speedMin = 1
	speedMax = 8
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// requireBackend answers 503 when no backend is wired.
func (s *Server) requireBackend(w http.ResponseWriter) bool {
	if s.backend == nil {
		s.writeError(w, http.StatusServiceUnavailable, "console not running")
		return false
	}
	return true
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	name := r.PathValue("name")
	if err := s.backend.Mount(name); err != nil {
		s.writeMountError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	name := r.PathValue("name")
	if err := s.backend.Unmount(name); err != nil {
		s.writeMountError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeMountError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Warn("widget mount failed", "widget", name, "error", err)
	s.writeError(w, http.StatusConflict, err.Error())
}

func (s *Server) handleBindings(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.backend.Bindings())
}

func (s *Server) handleSpeed(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, speedResponse{Speed: s.backend.Speed(), Min: speedMin, Max: speedMax})
}

func (s *Server) handleSpeedReset(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, speedResponse{Speed: s.backend.ResetSpeed(), Min: speedMin, Max: speedMax})
}

func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.backend.Connection())
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	action := r.PathValue("action")
	switch action {
	case "poweroff", "reboot":
	default:
		s.writeError(w, http.StatusBadRequest, "unknown power action "+action)
		return
	}

	s.logger.Info("power action requested", "action", action, "remote", r.RemoteAddr)
	if err := s.backend.Power(r.Context(), action); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTheme(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.backend.Theme().Snapshot())
}

// themeUpdate carries whichever signals the page reports. An empty
// override string clears the override.
type themeUpdate struct {
	Mode       *string `json:"mode"`
	SystemDark *bool   `json:"system_dark"`
	Override   *string `json:"override"`
}

func (s *Server) handleThemeUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(w) {
		return
	}

	var req themeUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid theme update: "+err.Error())
		return
	}

	var mode theme.Mode
	if req.Mode != nil {
		m, err := theme.ParseMode(*req.Mode)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}
	var override *theme.Appearance
	if req.Override != nil && *req.Override != "" {
		a := theme.Appearance(*req.Override)
		if a != theme.Light && a != theme.Dark {
			s.writeError(w, http.StatusBadRequest, "override must be light or dark")
			return
		}
		override = &a
	}

	st := s.backend.Theme()
	if req.Mode != nil {
		st.SetStored(mode)
	}
	if req.SystemDark != nil {
		st.SetSystemDark(*req.SystemDark)
	}
	if req.Override != nil {
		st.SetOverride(override)
	}
	s.writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleThemeCycle(w http.ResponseWriter, _ *http.Request) {
	if !s.requireBackend(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.backend.Theme().Cycle())
}
