package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Secret struct {
	Name      string    `json:"name"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSecret stores an encrypted secret token under a name, replacing any
// previous value.
func (s *Store) SaveSecret(name, token string) error {
	_, err := s.db.Exec(`
		INSERT INTO secrets (name, token)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			token = excluded.token,
			updated_at = CURRENT_TIMESTAMP`,
		name, token)
	if err != nil {
		return fmt.Errorf("save secret: %w", err)
	}
	return nil
}

func (s *Store) GetSecret(name string) (*Secret, error) {
	row := s.db.QueryRow(`SELECT name, token, created_at, updated_at FROM secrets WHERE name = ?`, name)
	sec := &Secret{}
	err := row.Scan(&sec.Name, &sec.Token, &sec.CreatedAt, &sec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sec, nil
}

// ListSecrets returns secret names without tokens.
func (s *Store) ListSecrets() ([]Secret, error) {
	rows, err := s.db.Query(`SELECT name, created_at, updated_at FROM secrets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var secrets []Secret
	for rows.Next() {
		var sec Secret
		if err := rows.Scan(&sec.Name, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		secrets = append(secrets, sec)
	}
	return secrets, rows.Err()
}

func (s *Store) DeleteSecret(name string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE name = ?`, name)
	return err
}
