package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmarkou/agora/internal/schema"
)

type Message struct {
	ID        int64               `json:"id"`
	RunID     string              `json:"run_id"`
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id"`
	Config    schema.AgentMessage `json:"config"`
	CreatedAt time.Time           `json:"created_at"`
}

// SaveMessage validates and appends a message to a run's transcript.
func (s *Store) SaveMessage(m *Message) error {
	if err := schema.ValidateMessage(m.Config); err != nil {
		return err
	}
	raw, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO messages (run_id, session_id, user_id, config)
		VALUES (?, ?, ?, ?)`,
		m.RunID, m.SessionID, m.UserID, raw)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ListMessages returns a run's transcript in insertion order. Each stored
// document passes through full schema validation on the way out.
func (s *Store) ListMessages(runID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, session_id, user_id, config, created_at
		FROM messages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var raw []byte
		if err := rows.Scan(&m.ID, &m.RunID, &m.SessionID, &m.UserID, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg, err := schema.DecodeMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("stored message %d: %w", m.ID, err)
		}
		m.Config = msg
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) CountMessages(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
