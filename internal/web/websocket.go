package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tmarkou/agora/internal/schema"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type runFrame struct {
	runID string
	frame *schema.Frame
}

// Hub fans run frames out to the websocket clients watching each run.
type Hub struct {
	clients   map[string]map[*websocket.Conn]bool
	broadcast chan runFrame
	mu        sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan runFrame, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rf := <-h.broadcast:
			data, err := json.Marshal(rf.frame)
			if err != nil {
				continue
			}

			// Dead clients get dropped from the run's map, so this
			// needs the write lock.
			h.mu.Lock()
			conns := h.clients[rf.runID]
			for client := range conns {
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					client.Close()
					delete(conns, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Broadcast(runID string, f *schema.Frame) {
	select {
	case h.broadcast <- runFrame{runID: runID, frame: f}:
	default:
		slog.Warn("websocket broadcast channel full, dropping frame", "run", runID)
	}
}

func (h *Hub) Register(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[*websocket.Conn]bool)
	}
	h.clients[runID][conn] = true
}

func (h *Hub) Unregister(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[runID], conn)
	if len(h.clients[runID]) == 0 {
		delete(h.clients, runID)
	}
}

// clientCommand is what a websocket client may send upstream.
type clientCommand struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func (s *Server) handleRunSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	run, err := s.store.GetRun(runID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(runID, conn)
	defer func() {
		s.hub.Unregister(runID, conn)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("invalid websocket command", "run", runID, "error", err)
			continue
		}

		switch cmd.Type {
		case "input_response":
			if err := s.manager.ProvideInput(runID, s.userID(r), cmd.Content); err != nil {
				frame := schema.ErrorFrame(err.Error(), "")
				s.hub.Broadcast(runID, &frame)
			}
		case "stop":
			if err := s.manager.Stop(runID); err != nil {
				slog.Warn("stop from websocket failed", "run", runID, "error", err)
			}
		default:
			slog.Warn("unknown websocket command", "run", runID, "type", cmd.Type)
		}
	}
}
