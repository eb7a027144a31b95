package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultFileName is the report database created in the workspace root.
const DefaultFileName = ".fnref.db"

// Store is the SQLite data access layer for usage reports.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS definitions (
  id              INTEGER PRIMARY KEY,
  identifier      TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  file_path       TEXT NOT NULL,
  line            INTEGER NOT NULL,
  col             INTEGER NOT NULL,
  wrapper         TEXT NOT NULL,
  scanned_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS searches (
  id              INTEGER PRIMARY KEY,
  identifier      TEXT NOT NULL,
  function_name   TEXT NOT NULL,
  elapsed_ns      INTEGER NOT NULL,
  searched_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS usages (
  id              INTEGER PRIMARY KEY,
  search_id       INTEGER NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
  file_path       TEXT NOT NULL,
  line            INTEGER NOT NULL,
  col             INTEGER NOT NULL,
  text            TEXT NOT NULL,
  access_pattern  TEXT
);

CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_path);
CREATE INDEX IF NOT EXISTS idx_searches_identifier ON searches(identifier);
CREATE INDEX IF NOT EXISTS idx_usages_search ON usages(search_id);
`

// ReplaceDefinitions transactionally replaces every stored definition with
// defs. IDs are assigned on the passed values.
func (s *Store) ReplaceDefinitions(defs []*Definition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM definitions"); err != nil {
		return fmt.Errorf("clear definitions: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO definitions
		(identifier, name, kind, file_path, line, col, wrapper, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare definition insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range defs {
		if d.ScannedAt.IsZero() {
			d.ScannedAt = time.Now()
		}
		res, err := stmt.Exec(d.Identifier, d.Name, d.Kind, d.FilePath, d.Line, d.Col, d.Wrapper, d.ScannedAt)
		if err != nil {
			return fmt.Errorf("insert definition %s: %w", d.Identifier, err)
		}
		if d.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("definition id: %w", err)
		}
	}
	return tx.Commit()
}

// Definitions returns all stored definitions ordered by file and line.
func (s *Store) Definitions() ([]*Definition, error) {
	rows, err := s.db.Query(`SELECT id, identifier, name, kind, file_path, line, col, wrapper, scanned_at
		FROM definitions ORDER BY file_path, line`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(&d.ID, &d.Identifier, &d.Name, &d.Kind, &d.FilePath, &d.Line, &d.Col, &d.Wrapper, &d.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// InsertSearch records a search and its usages in one transaction and
// sets the assigned IDs.
func (s *Store) InsertSearch(search *Search) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if search.SearchedAt.IsZero() {
		search.SearchedAt = time.Now()
	}
	res, err := tx.Exec(`INSERT INTO searches (identifier, function_name, elapsed_ns, searched_at)
		VALUES (?, ?, ?, ?)`,
		search.Identifier, search.FunctionName, int64(search.Elapsed), search.SearchedAt)
	if err != nil {
		return 0, fmt.Errorf("insert search: %w", err)
	}
	if search.ID, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("search id: %w", err)
	}

	if len(search.Usages) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO usages
			(search_id, file_path, line, col, text, access_pattern)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("prepare usage insert: %w", err)
		}
		defer stmt.Close()
		for i := range search.Usages {
			u := &search.Usages[i]
			u.SearchID = search.ID
			res, err := stmt.Exec(u.SearchID, u.FilePath, u.Line, u.Col, u.Text, u.AccessPattern)
			if err != nil {
				return 0, fmt.Errorf("insert usage: %w", err)
			}
			if u.ID, err = res.LastInsertId(); err != nil {
				return 0, fmt.Errorf("usage id: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit search: %w", err)
	}
	return search.ID, nil
}

// LatestSearch returns the most recent search for identifier with its
// usages, or nil when none is recorded.
func (s *Store) LatestSearch(identifier string) (*Search, error) {
	search := &Search{}
	var elapsed int64
	err := s.db.QueryRow(`SELECT id, identifier, function_name, elapsed_ns, searched_at
		FROM searches WHERE identifier = ? ORDER BY id DESC LIMIT 1`, identifier).
		Scan(&search.ID, &search.Identifier, &search.FunctionName, &elapsed, &search.SearchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest search: %w", err)
	}
	search.Elapsed = time.Duration(elapsed)

	rows, err := s.db.Query(`SELECT id, search_id, file_path, line, col, text, COALESCE(access_pattern, '')
		FROM usages WHERE search_id = ? ORDER BY id`, search.ID)
	if err != nil {
		return nil, fmt.Errorf("query usages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.ID, &u.SearchID, &u.FilePath, &u.Line, &u.Col, &u.Text, &u.AccessPattern); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		search.Usages = append(search.Usages, u)
	}
	return search, rows.Err()
}

// UsageCounts returns every stored definition with the usage count of its
// latest search, ordered by file and line.
func (s *Store) UsageCounts() ([]*DefinitionUsage, error) {
	rows, err := s.db.Query(`
		SELECT d.id, d.identifier, d.name, d.kind, d.file_path, d.line, d.col, d.wrapper, d.scanned_at,
		       l.search_id, COUNT(u.id)
		FROM definitions d
		LEFT JOIN (SELECT identifier, MAX(id) AS search_id FROM searches GROUP BY identifier) l
		       ON l.identifier = d.identifier
		LEFT JOIN usages u ON u.search_id = l.search_id
		GROUP BY d.id
		ORDER BY d.file_path, d.line`)
	if err != nil {
		return nil, fmt.Errorf("query usage counts: %w", err)
	}
	defer rows.Close()

	var out []*DefinitionUsage
	for rows.Next() {
		du := &DefinitionUsage{}
		var searchID sql.NullInt64
		d := &du.Definition
		if err := rows.Scan(&d.ID, &d.Identifier, &d.Name, &d.Kind, &d.FilePath, &d.Line, &d.Col, &d.Wrapper, &d.ScannedAt,
			&searchID, &du.UsageCount); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		du.Searched = searchID.Valid
		out = append(out, du)
	}
	return out, rows.Err()
}

// Unused returns the searched definitions whose latest search found no
// usages.
func (s *Store) Unused() ([]*DefinitionUsage, error) {
	counts, err := s.UsageCounts()
	if err != nil {
		return nil, err
	}
	var out []*DefinitionUsage
	for _, du := range counts {
		if du.Searched && du.UsageCount == 0 {
			out = append(out, du)
		}
	}
	return out, nil
}

// PruneSearches deletes all but the newest keep searches per identifier.
func (s *Store) PruneSearches(keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.Exec(`DELETE FROM searches WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY identifier ORDER BY id DESC) AS rn
			FROM searches
		) WHERE rn > ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune searches: %w", err)
	}
	return res.RowsAffected()
}
