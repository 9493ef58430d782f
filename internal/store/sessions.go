package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	TeamID    *string   `json:"team_id,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const sessionColumns = `id, user_id, name, team_id, version, created_at, updated_at`

func scanSession(scanner interface {
	Scan(dest ...any) error
}) (*Session, error) {
	sess := &Session{}
	err := scanner.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.TeamID, &sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) SaveSession(sess *Session) error {
	if sess.TeamID != nil {
		team, err := s.GetTeam(*sess.TeamID)
		if err != nil {
			return err
		}
		if team == nil {
			return fmt.Errorf("session references unknown team %s", *sess.TeamID)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user_id, name, team_id, version)
		VALUES (?, ?, ?, ?, 1)`,
		sess.ID, sess.UserID, sess.Name, sess.TeamID)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.Version = 1
	return nil
}

func (s *Store) UpdateSession(sess *Session) error {
	res, err := s.db.Exec(`
		UPDATE sessions
		SET name = ?, team_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		sess.Name, sess.TeamID, sess.ID, sess.Version)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	sess.Version++
	return nil
}

func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(userID string) ([]Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session together with its runs and messages.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session runs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return tx.Commit()
}
