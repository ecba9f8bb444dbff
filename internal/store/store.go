package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    owner           TEXT NOT NULL,
    name            TEXT NOT NULL,
    html_url        TEXT NOT NULL,
    file_structure  TEXT NOT NULL DEFAULT '[]',
    archetype       TEXT NOT NULL DEFAULT 'landing',
    prompt          TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(owner, name)
);

CREATE TABLE IF NOT EXISTS edit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT NOT NULL,
    repo_id     INTEGER NOT NULL REFERENCES repositories(id),
    file_path   TEXT NOT NULL,
    prompt      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_repositories_user ON repositories(user_id);
CREATE INDEX IF NOT EXISTS idx_edit_log_repo ON edit_log(repo_id);
`

// RepoRecord is the persisted row for one generated repository.
type RepoRecord struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	HTMLURL       string    `json:"html_url"`
	FileStructure string    `json:"file_structure"`
	Archetype     string    `json:"archetype"`
	Prompt        string    `json:"prompt"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EditLogEntry records one follow-up commit from the conversational editor.
// Append-only; there is no deletion path.
type EditLogEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	RepoID      int64     `json:"repo_id"`
	FilePath    string    `json:"file_path"`
	Prompt      string    `json:"prompt"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer; one pooled connection also keeps
	// ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// UpsertRepo writes the record for a generated repository, replacing any
// prior row for the same owner/name pair.
func (s *Store) UpsertRepo(r *RepoRecord) (*RepoRecord, error) {
	_, err := s.db.Exec(
		`INSERT INTO repositories (owner, name, html_url, file_structure, archetype, prompt, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner, name) DO UPDATE SET
		   html_url = excluded.html_url,
		   file_structure = excluded.file_structure,
		   archetype = excluded.archetype,
		   prompt = excluded.prompt,
		   user_id = excluded.user_id,
		   updated_at = datetime('now')`,
		r.Owner, r.Name, r.HTMLURL, r.FileStructure, r.Archetype, r.Prompt, r.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting repository: %w", err)
	}
	return s.GetRepoByName(r.Owner, r.Name)
}

// GetRepo fetches one record by id.
func (s *Store) GetRepo(id int64) (*RepoRecord, error) {
	return s.scanRepo(s.db.QueryRow(
		`SELECT id, owner, name, html_url, file_structure, archetype, prompt, user_id, created_at, updated_at
		 FROM repositories WHERE id = ?`, id))
}

// GetRepoByName fetches one record by its owner/name pair.
func (s *Store) GetRepoByName(owner, name string) (*RepoRecord, error) {
	return s.scanRepo(s.db.QueryRow(
		`SELECT id, owner, name, html_url, file_structure, archetype, prompt, user_id, created_at, updated_at
		 FROM repositories WHERE owner = ? AND name = ?`, owner, name))
}

func (s *Store) scanRepo(row *sql.Row) (*RepoRecord, error) {
	r := &RepoRecord{}
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.HTMLURL, &r.FileStructure,
		&r.Archetype, &r.Prompt, &r.UserID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	r.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return r, nil
}

// ListReposByUser lists a user's records, most recently updated first.
func (s *Store) ListReposByUser(userID string) ([]RepoRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, owner, name, html_url, file_structure, archetype, prompt, user_id, created_at, updated_at
		 FROM repositories WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	defer rows.Close()

	var results []RepoRecord
	for rows.Next() {
		var r RepoRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.HTMLURL, &r.FileStructure,
			&r.Archetype, &r.Prompt, &r.UserID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		r.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// TouchRepo bumps updated_at after a follow-up edit commit.
func (s *Store) TouchRepo(id int64) error {
	_, err := s.db.Exec(
		`UPDATE repositories SET updated_at = datetime('now') WHERE id = ?`, id)
	return err
}

// DeleteRepo removes the record. The remote repository is not touched.
func (s *Store) DeleteRepo(id int64) error {
	_, err := s.db.Exec(`DELETE FROM repositories WHERE id = ?`, id)
	return err
}

// AppendEdit appends one edit-log row.
func (s *Store) AppendEdit(e *EditLogEntry) (*EditLogEntry, error) {
	res, err := s.db.Exec(
		`INSERT INTO edit_log (user_id, repo_id, file_path, prompt, description)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.RepoID, e.FilePath, e.Prompt, e.Description)
	if err != nil {
		return nil, fmt.Errorf("appending edit log: %w", err)
	}
	id, _ := res.LastInsertId()

	out := &EditLogEntry{}
	var createdAt string
	err = s.db.QueryRow(
		`SELECT id, user_id, repo_id, file_path, prompt, description, created_at
		 FROM edit_log WHERE id = ?`, id,
	).Scan(&out.ID, &out.UserID, &out.RepoID, &out.FilePath, &out.Prompt, &out.Description, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("getting edit log entry: %w", err)
	}
	out.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	return out, nil
}

// ListEdits lists a repository's edit log, oldest first.
func (s *Store) ListEdits(repoID int64) ([]EditLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, repo_id, file_path, prompt, description, created_at
		 FROM edit_log WHERE repo_id = ? ORDER BY created_at ASC, id ASC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("listing edit log: %w", err)
	}
	defer rows.Close()

	var results []EditLogEntry
	for rows.Next() {
		var e EditLogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.RepoID, &e.FilePath, &e.Prompt, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning edit log entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		results = append(results, e)
	}
	return results, rows.Err()
}
