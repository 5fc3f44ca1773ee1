package drafts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Key scopes drafts to one remote branch.
type Key struct {
	Username string
	Repo     string
	Branch   string
}

// Record is the minimal snapshot of one modified or removed entry.
// Source is nil when the body was never loaded.
type Record struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	PublishTime string   `json:"isoPubtime"`
	Tags        []string `json:"tags"`
	Source      *string  `json:"source,omitempty"`
	Removed     bool     `json:"removed,omitempty"`
	PriorName   string   `json:"priorName,omitempty"`
}

// Cache is the draft persistence used by the workspace.
type Cache interface {
	Save(key Key, records []Record) error
	Load(key Key) ([]Record, error)
	Clear(key Key) error
}

// Verify *DB satisfies Cache at compile time.
var _ Cache = (*DB)(nil)

// Save replaces the stored records for key within a transaction.
func (db *DB) Save(key Key, records []Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("drafts: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM drafts WHERE username = ? AND repo = ? AND branch = ?`,
		key.Username, key.Repo, key.Branch); err != nil {
		return fmt.Errorf("drafts: clear: %w", err)
	}
	if len(records) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO drafts (username, repo, branch, position, record, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("drafts: prepare insert: %w", err)
		}
		defer stmt.Close()
		now := time.Now().UTC()
		for i, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("drafts: encode record %q: %w", r.Name, err)
			}
			if _, err := stmt.Exec(key.Username, key.Repo, key.Branch, i, string(data), now); err != nil {
				return fmt.Errorf("drafts: insert record %q: %w", r.Name, err)
			}
		}
	}
	return tx.Commit()
}

// Load returns the records stored for key in their saved order.
func (db *DB) Load(key Key) ([]Record, error) {
	rows, err := db.conn.Query(`SELECT record FROM drafts WHERE username = ? AND repo = ? AND branch = ? ORDER BY position`,
		key.Username, key.Repo, key.Branch)
	if err != nil {
		return nil, fmt.Errorf("drafts: load: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("drafts: decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear removes every record stored for key.
func (db *DB) Clear(key Key) error {
	_, err := db.conn.Exec(`DELETE FROM drafts WHERE username = ? AND repo = ? AND branch = ?`,
		key.Username, key.Repo, key.Branch)
	if err != nil {
		return fmt.Errorf("drafts: clear: %w", err)
	}
	return nil
}
