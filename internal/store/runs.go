package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmarkou/agora/internal/schema"
)

type Run struct {
	ID           string              `json:"id"`
	SessionID    string              `json:"session_id"`
	Status       schema.RunStatus    `json:"status"`
	Task         schema.AgentMessage `json:"task,omitempty"`
	TeamResult   *schema.TeamResult  `json:"team_result,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	Version      int64               `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

const runColumns = `id, session_id, status, task, team_result, error_message, version, created_at, updated_at`

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	r := &Run{}
	var status string
	var task, result *string
	err := scanner.Scan(&r.ID, &r.SessionID, &status, &task, &result, &r.ErrorMessage, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = schema.RunStatus(status)
	if !r.Status.Valid() {
		return nil, fmt.Errorf("stored run %s has unknown status %q", r.ID, status)
	}
	if task != nil && *task != "" {
		msg, err := schema.DecodeMessage([]byte(*task))
		if err != nil {
			return nil, fmt.Errorf("stored run task: %w", err)
		}
		r.Task = msg
	}
	if result != nil && *result != "" {
		var tr schema.TeamResult
		if err := json.Unmarshal([]byte(*result), &tr); err != nil {
			return nil, fmt.Errorf("stored run result: %w", err)
		}
		r.TeamResult = &tr
	}
	return r, nil
}

func (s *Store) SaveRun(r *Run) error {
	if r.Status == "" {
		r.Status = schema.RunStatusCreated
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown run status %q", r.Status)
	}

	var task any
	if r.Task != nil {
		if err := schema.ValidateMessage(r.Task); err != nil {
			return err
		}
		raw, err := json.Marshal(r.Task)
		if err != nil {
			return fmt.Errorf("marshal run task: %w", err)
		}
		task = string(raw)
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, session_id, status, task, version)
		VALUES (?, ?, ?, ?, 1)`,
		r.ID, r.SessionID, string(r.Status), task)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	r.Version = 1
	return nil
}

// UpdateRun persists the run's status, result and error message if the
// caller holds the current version.
func (s *Store) UpdateRun(r *Run) error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	if r.TeamResult != nil && r.Status != schema.RunStatusComplete {
		return fmt.Errorf("run %s: team result requires complete status, have %s", r.ID, r.Status)
	}
	if r.ErrorMessage != nil && r.Status != schema.RunStatusError {
		return fmt.Errorf("run %s: error message requires error status, have %s", r.ID, r.Status)
	}

	var result any
	if r.TeamResult != nil {
		raw, err := json.Marshal(r.TeamResult)
		if err != nil {
			return fmt.Errorf("marshal run result: %w", err)
		}
		result = string(raw)
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, team_result = ?, error_message = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		string(r.Status), result, r.ErrorMessage, r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	r.Version++
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListOpenRuns returns runs in a non-terminal state across all sessions,
// oldest first.
func (s *Store) ListOpenRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs WHERE status IN ('created', 'active', 'awaiting_input') ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list open runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) ListRuns(sessionID string) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
