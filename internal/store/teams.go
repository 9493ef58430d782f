package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmarkou/agora/internal/schema"
)

type Team struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Config    *schema.TeamConfig `json:"config"`
	Version   int64              `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

const teamColumns = `id, user_id, config, version, created_at, updated_at`

func scanTeam(scanner interface {
	Scan(dest ...any) error
}) (*Team, error) {
	t := &Team{}
	var raw []byte
	if err := scanner.Scan(&t.ID, &t.UserID, &raw, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	cfg, err := schema.DecodeTeam(raw)
	if err != nil {
		return nil, fmt.Errorf("stored team config: %w", err)
	}
	t.Config = cfg
	return t, nil
}

// SaveTeam inserts a new team. The config is validated before it touches disk.
func (s *Store) SaveTeam(t *Team) error {
	if err := schema.ValidateTeam(t.Config); err != nil {
		return err
	}
	raw, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal team config: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO teams (id, user_id, config, version)
		VALUES (?, ?, ?, 1)`,
		t.ID, t.UserID, raw)
	if err != nil {
		return fmt.Errorf("save team: %w", err)
	}
	t.Version = 1
	return nil
}

// UpdateTeam replaces the team config if the caller holds the current
// version. A stale version yields ErrVersionConflict.
func (s *Store) UpdateTeam(t *Team) error {
	if err := schema.ValidateTeam(t.Config); err != nil {
		return err
	}
	raw, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal team config: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE teams
		SET config = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		raw, t.ID, t.Version)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	t.Version++
	return nil
}

func (s *Store) GetTeam(id string) (*Team, error) {
	row := s.db.QueryRow(`SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (s *Store) ListTeams(userID string) ([]Team, error) {
	rows, err := s.db.Query(`SELECT `+teamColumns+` FROM teams WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func (s *Store) DeleteTeam(id string) error {
	_, err := s.db.Exec(`DELETE FROM teams WHERE id = ?`, id)
	return err
}
