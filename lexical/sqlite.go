// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package lexical

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/poiesic/indexit/core"
)

// initialSchema contains the SQL for creating tables.
const initialSchema = `-- Full-text index over chunk text.
CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
    text,
    heading,
    point_id UNINDEXED,
    workspace_id UNINDEXED,
    source_id UNINDEXED
);

-- Content fingerprints of fully indexed document versions, used to detect
-- duplicate submissions before any embedding work happens.
CREATE TABLE IF NOT EXISTS dedup_fingerprints (
    workspace_id TEXT NOT NULL,
    source_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    PRIMARY KEY (workspace_id, source_id)
);
`

// Entry is one chunk as stored in the keyword index.
type Entry struct {
	PointID     string
	WorkspaceID string
	SourceID    string
	Text        string
	Heading     string
}

// Match is a keyword-search hit. Rank is the bm25 score; lower is better.
type Match struct {
	PointID     string
	WorkspaceID string
	SourceID    string
	Text        string
	Heading     string
	Rank        float64
}

// Index is the SQLite-backed keyword index.
type Index struct {
	conn *sql.DB
}

// Open creates or opens the keyword index at dbPath. An empty path opens an
// in-memory index.
func Open(dbPath string) (*Index, error) {
	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		dsn = dbPath
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	// The driver opens one connection per query by default; FTS writes and
	// the in-memory DSN both need a single shared connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(initialSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create keyword schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.conn.Close()
}

// IndexChunks adds entries for one document version. Existing entries for
// other versions of the same document are left untouched.
func (x *Index) IndexChunks(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := x.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin keyword transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_fts (text, heading, point_id, workspace_id, source_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare keyword insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Text, e.Heading, e.PointID, e.WorkspaceID, e.SourceID); err != nil {
			return fmt.Errorf("insert keyword entry %s: %w", e.PointID, err)
		}
	}
	return tx.Commit()
}

// RemovePoints deletes the entries with the given point IDs.
func (x *Index) RemovePoints(ctx context.Context, workspaceID, sourceID string, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(pointIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(pointIDs)+2)
	args = append(args, workspaceID, sourceID)
	for _, id := range pointIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`DELETE FROM chunk_fts WHERE workspace_id = ? AND source_id = ? AND point_id IN (%s)`,
		placeholders)
	if _, err := x.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove keyword entries: %w", err)
	}
	return nil
}

// RemoveSource deletes every entry of one document.
func (x *Index) RemoveSource(ctx context.Context, workspaceID, sourceID string) error {
	_, err := x.conn.ExecContext(ctx,
		`DELETE FROM chunk_fts WHERE workspace_id = ? AND source_id = ?`,
		workspaceID, sourceID)
	if err != nil {
		return fmt.Errorf("remove keyword source: %w", err)
	}
	return nil
}

// Search runs a keyword query scoped to one workspace, best matches first.
func (x *Index) Search(ctx context.Context, workspaceID, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	ftsQuery := sanitizeQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := x.conn.QueryContext(ctx,
		`SELECT point_id, workspace_id, source_id, text, heading, bm25(chunk_fts)
		 FROM chunk_fts
		 WHERE chunk_fts MATCH ? AND workspace_id = ?
		 ORDER BY bm25(chunk_fts)
		 LIMIT ?`,
		ftsQuery, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.PointID, &m.WorkspaceID, &m.SourceID, &m.Text, &m.Heading, &m.Rank); err != nil {
			return nil, fmt.Errorf("scan keyword match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Fingerprint returns the stored dedup fingerprint for a document, or ""
// when the document has never been fully indexed.
func (x *Index) Fingerprint(ctx context.Context, workspaceID, sourceID string) (string, error) {
	var fp string
	err := x.conn.QueryRowContext(ctx,
		`SELECT fingerprint FROM dedup_fingerprints WHERE workspace_id = ? AND source_id = ?`,
		workspaceID, sourceID).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read dedup fingerprint: %w", err)
	}
	return fp, nil
}

// SetFingerprint records the content fingerprint of a fully indexed document
// version, replacing any previous version's fingerprint.
func (x *Index) SetFingerprint(ctx context.Context, workspaceID, sourceID, fingerprint string) error {
	_, err := x.conn.ExecContext(ctx,
		`INSERT INTO dedup_fingerprints (workspace_id, source_id, fingerprint) VALUES (?, ?, ?)
		 ON CONFLICT (workspace_id, source_id) DO UPDATE SET fingerprint = excluded.fingerprint`,
		workspaceID, sourceID, fingerprint)
	if err != nil {
		return fmt.Errorf("set dedup fingerprint: %w", err)
	}
	return nil
}

// DeleteFingerprint removes a document's dedup fingerprint.
func (x *Index) DeleteFingerprint(ctx context.Context, workspaceID, sourceID string) error {
	_, err := x.conn.ExecContext(ctx,
		`DELETE FROM dedup_fingerprints WHERE workspace_id = ? AND source_id = ?`,
		workspaceID, sourceID)
	if err != nil {
		return fmt.Errorf("delete dedup fingerprint: %w", err)
	}
	return nil
}

// EntriesFor builds keyword entries from chunks using the same point IDs as
// the dense index.
func EntriesFor(workspaceID, sourceID string, pointIDs []string, chunks []core.Chunk) []Entry {
	n := len(pointIDs)
	if len(chunks) < n {
		n = len(chunks)
	}
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{
			PointID:     pointIDs[i],
			WorkspaceID: workspaceID,
			SourceID:    sourceID,
			Text:        chunks[i].Text,
			Heading:     chunks[i].HeadingPath,
		}
	}
	return entries
}

// sanitizeQuery turns free text into a safe FTS5 query: each term is quoted
// and terms are implicitly ANDed. FTS5 operators in user input are treated
// as literal text.
func sanitizeQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		f = strings.Trim(f, `'^*():`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
