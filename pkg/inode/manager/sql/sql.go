// Copyright 2018-2024 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package sql implements the inode manager on postgres. The schema lives
// in the private schema; the connection prefers it on the search path.
package sql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/insight-platform/insight-worker/pkg/errtypes"
	"github.com/insight-platform/insight-worker/pkg/inode"
)

type mgr struct {
	db *sql.DB
}

// New returns an inode manager connected to the postgres database at uri.
func New(uri string) (inode.Manager, error) {
	cfg, err := pgx.ParseConfig(uri)
	if err != nil {
		return nil, errors.Wrap(err, "sql: error parsing postgres uri")
	}
	cfg.RuntimeParams["search_path"] = "private,public"

	db := stdlib.OpenDB(*cfg)
	return &mgr{db: db}, nil
}

// NewFromDB returns an inode manager over an existing connection pool.
func NewFromDB(db *sql.DB) inode.Manager {
	return &mgr{db: db}
}

const inodeColumns = `id, owner_id, parent_id, type, name, path, is_indexed, is_uploaded, is_ingested, is_embedded, is_public, should_move, from_page, to_page, error`

func (m *mgr) GetInode(ctx context.Context, id int64) (*inode.Inode, error) {
	query := "SELECT " + inodeColumns + " FROM inodes WHERE id = $1"

	var (
		in       inode.Inode
		parentID sql.NullInt64
		toPage   sql.NullInt32
		inodeErr sql.NullString
	)
	err := m.db.QueryRowContext(ctx, query, id).Scan(
		&in.ID, &in.OwnerID, &parentID, &in.Type, &in.Name, &in.Path,
		&in.IsIndexed, &in.IsUploaded, &in.IsIngested, &in.IsEmbedded,
		&in.IsPublic, &in.ShouldMove, &in.FromPage, &toPage, &inodeErr,
	)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound("inode not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "sql: error loading inode")
	}

	if parentID.Valid {
		in.ParentID = &parentID.Int64
	}
	if toPage.Valid {
		tp := int(toPage.Int32)
		in.ToPage = &tp
	}
	if inodeErr.Valid {
		in.Error = &inodeErr.String
	}
	return &in, nil
}

func (m *mgr) SaveInode(ctx context.Context, in *inode.Inode) error {
	query := `UPDATE inodes
		SET path = $2, is_indexed = $3, is_ingested = $4, is_embedded = $5,
			should_move = $6, to_page = $7, error = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	var toPage sql.NullInt32
	if in.ToPage != nil {
		toPage = sql.NullInt32{Int32: int32(*in.ToPage), Valid: true}
	}
	var inodeErr sql.NullString
	if in.Error != nil {
		inodeErr = sql.NullString{String: *in.Error, Valid: true}
	}

	res, err := m.db.ExecContext(ctx, query,
		in.ID, in.Path, in.IsIndexed, in.IsIngested, in.IsEmbedded,
		in.ShouldMove, toPage, inodeErr,
	)
	if err != nil {
		return errors.Wrap(err, "sql: error saving inode")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errtypes.NotFound("inode not found")
	}
	return nil
}

func (m *mgr) CanonicalPath(ctx context.Context, id int64) (string, error) {
	var path string
	err := m.db.QueryRowContext(ctx, "SELECT inode_path($1)", id).Scan(&path)
	if err == sql.ErrNoRows {
		return "", errtypes.NotFound("inode not found")
	}
	if err != nil {
		return "", errors.Wrap(err, "sql: error computing inode path")
	}
	return path, nil
}

func (m *mgr) UpsertPages(ctx context.Context, inodeID int64, pages []inode.PageText) error {
	if len(pages) == 0 {
		return nil
	}

	// One multi-row insert; contents is the only column updated on
	// conflict so re-ingesting never clears embeddings.
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString(`INSERT INTO pages (inode_id, "index", contents) VALUES `)
	for i, p := range pages {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 3
		b.WriteString("($" + strconv.Itoa(n+1) + ", $" + strconv.Itoa(n+2) + ", $" + strconv.Itoa(n+3) + ")")
		args = append(args, inodeID, p.Index, p.Contents)
	}
	b.WriteString(` ON CONFLICT (inode_id, "index") DO UPDATE SET contents = EXCLUDED.contents`)

	if _, err := m.db.ExecContext(ctx, b.String(), args...); err != nil {
		return errors.Wrap(err, "sql: error upserting pages")
	}
	return nil
}

func (m *mgr) PagesForIndex(ctx context.Context, inodeID int64) ([]inode.Page, error) {
	query := `SELECT id, inode_id, "index", contents, embedding IS NOT NULL
		FROM pages
		WHERE inode_id = $1 AND length(contents) > 0
		ORDER BY "index"`

	rows, err := m.db.QueryContext(ctx, query, inodeID)
	if err != nil {
		return nil, errors.Wrap(err, "sql: error selecting pages")
	}
	defer rows.Close()
	return scanPages(rows)
}

func (m *mgr) PagesForEmbed(ctx context.Context, in *inode.Inode) ([]inode.Page, error) {
	query := `SELECT id, inode_id, "index", contents, embedding IS NOT NULL
		FROM pages
		WHERE inode_id = $1
			AND "index" >= $2 AND "index" < $3
			AND embedding IS NULL
			AND length(contents) > 0
		ORDER BY "index"`

	toPage := 0
	if in.ToPage != nil {
		toPage = *in.ToPage
	}

	rows, err := m.db.QueryContext(ctx, query, in.ID, in.FromPage, toPage)
	if err != nil {
		return nil, errors.Wrap(err, "sql: error selecting pages to embed")
	}
	defer rows.Close()
	return scanPages(rows)
}

func (m *mgr) SetEmbeddings(ctx context.Context, pageIDs []int64, vectors [][]float32) error {
	if len(pageIDs) != len(vectors) {
		return errors.Errorf("sql: got %d vectors for %d pages", len(vectors), len(pageIDs))
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sql: error starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range pageIDs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE pages SET embedding = $1 WHERE id = $2",
			pgvector.NewVector(vectors[i]), id,
		); err != nil {
			return errors.Wrapf(err, "sql: error setting embedding for page %d", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sql: error committing embeddings")
	}
	return nil
}

func (m *mgr) MarkAllUnindexed(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "UPDATE inodes SET is_indexed = false"); err != nil {
		return errors.Wrap(err, "sql: error marking inodes unindexed")
	}
	return nil
}

func (m *mgr) ListInodeIDs(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT id FROM inodes ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "sql: error listing inodes")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "sql: error scanning inode id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPages(rows *sql.Rows) ([]inode.Page, error) {
	var pages []inode.Page
	for rows.Next() {
		var p inode.Page
		if err := rows.Scan(&p.ID, &p.InodeID, &p.Index, &p.Contents, &p.HasEmbedding); err != nil {
			return nil, errors.Wrap(err, "sql: error scanning page")
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
