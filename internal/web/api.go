package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Teams
	mux.HandleFunc("GET /api/teams", s.listTeams)
	mux.HandleFunc("POST /api/teams", s.createTeam)
	mux.HandleFunc("POST /api/teams/validate", s.validateTeam)
	mux.HandleFunc("GET /api/teams/{id}", s.getTeam)
	mux.HandleFunc("PUT /api/teams/{id}", s.updateTeam)
	mux.HandleFunc("DELETE /api/teams/{id}", s.deleteTeam)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.updateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/runs", s.listRuns)
	mux.HandleFunc("POST /api/sessions/{id}/runs", s.submitRun)

	// Runs
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("GET /api/runs/{id}/messages", s.listMessages)
	mux.HandleFunc("POST /api/runs/{id}/input", s.provideInput)
	mux.HandleFunc("POST /api/runs/{id}/stop", s.stopRun)

	// Secrets
	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.createSecret)
	mux.HandleFunc("DELETE /api/secrets/{name}", s.deleteSecret)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(s.userID(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if teams == nil {
		teams = []store.Team{}
	}
	jsonResponse(w, teams)
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "read body", http.StatusBadRequest)
		return
	}

	cfg, err := schema.DecodeTeam(raw)
	if err != nil {
		jsonValidationError(w, err)
		return
	}

	team := &store.Team{ID: uuid.NewString(), UserID: s.userID(r), Config: cfg}
	if err := s.store.SaveTeam(team); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, team)
}

// validateTeam checks a team config without persisting it, returning the
// full list of issues so an editor can show them all at once.
func (s *Server) validateTeam(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "read body", http.StatusBadRequest)
		return
	}

	if _, err := schema.DecodeTeam(raw); err != nil {
		jsonValidationError(w, err)
		return
	}
	jsonResponse(w, map[string]any{"valid": true})
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if team == nil {
		jsonError(w, "team not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, team)
}

func (s *Server) updateTeam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Config  json.RawMessage `json:"config"`
		Version int64           `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := schema.DecodeTeam(body.Config)
	if err != nil {
		jsonValidationError(w, err)
		return
	}

	team := &store.Team{ID: r.PathValue("id"), UserID: s.userID(r), Config: cfg, Version: body.Version}
	if err := s.store.UpdateTeam(team); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			jsonError(w, "version conflict", http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, team)
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTeam(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(s.userID(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	jsonResponse(w, sessions)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string  `json:"name"`
		TeamID *string `json:"team_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	sess := &store.Session{ID: uuid.NewString(), UserID: s.userID(r), Name: body.Name, TeamID: body.TeamID}
	if err := s.store.SaveSession(sess); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResponse(w, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, sess)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string  `json:"name"`
		TeamID  *string `json:"team_id,omitempty"`
		Version int64   `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess := &store.Session{ID: r.PathValue("id"), UserID: s.userID(r), Name: body.Name, TeamID: body.TeamID, Version: body.Version}
	if err := s.store.UpdateSession(sess); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			jsonError(w, "version conflict", http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListRuns(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []store.Run{}
	}
	jsonResponse(w, list)
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task json.RawMessage `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var task schema.AgentMessage
	if len(body.Task) > 0 {
		msg, err := schema.DecodeMessage(body.Task)
		if err != nil {
			jsonValidationError(w, err)
			return
		}
		task = msg
	} else {
		jsonError(w, "task is required", http.StatusBadRequest)
		return
	}

	run, err := s.manager.Submit(r.PathValue("id"), s.userID(r), task)
	if err != nil {
		jsonValidationError(w, err)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.ListMessages(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	jsonResponse(w, msgs)
}

func (s *Server) provideInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Content == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	if err := s.manager.ProvideInput(r.PathValue("id"), s.userID(r), body.Content); err != nil {
		jsonValidationError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Stop(r.PathValue("id")); err != nil {
		jsonValidationError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSecrets()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []store.Secret{}
	}
	jsonResponse(w, list)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}

	if err := s.resolver.Store(body.Name, body.Value); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSecret(r.PathValue("name")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonValidationError renders schema layer errors with their issue lists so
// clients see every path that failed, not just the first.
func jsonValidationError(w http.ResponseWriter, err error) {
	code := schemaStatus(err)

	var se *schema.SchemaError
	if errors.As(err, &se) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "validation failed",
			"issues": se.Issues,
		})
		return
	}
	jsonError(w, err.Error(), code)
}
