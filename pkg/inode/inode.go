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

// Package inode defines the domain model of the user-visible namespace and
// the manager interface over its relational store. The database is the
// sole source of truth; the object store and search index are derived
// views that converge to it.
package inode

import (
	"context"

	"github.com/google/uuid"
)

// Type is the inode type, folder or file.
type Type string

const (
	// TypeFolder is an inner node of the namespace.
	TypeFolder Type = "folder"
	// TypeFile is a leaf carrying an uploaded PDF.
	TypeFile Type = "file"
)

// Inode is one node of the hierarchical namespace.
type Inode struct {
	ID       int64
	OwnerID  uuid.UUID
	ParentID *int64
	Type     Type
	Name     string
	// Path is the materialized path, case-insensitive and unique per owner.
	Path string

	IsIndexed  bool
	IsUploaded bool
	IsIngested bool
	IsEmbedded bool
	IsPublic   bool
	ShouldMove bool

	// FromPage and ToPage bound the half-open page window [FromPage, ToPage)
	// that is ingested from the upload. ToPage is nil until ingest reads the
	// page count.
	FromPage int
	ToPage   *int

	// Error holds the persisted ingest error enum value, if any. An inode
	// with an error is terminal and must not be re-embedded.
	Error *string
}

// IsReady mirrors the database's generated is_ready column.
func (i *Inode) IsReady() bool {
	return i.IsIndexed && i.IsUploaded && i.IsIngested && i.IsEmbedded
}

// Page is one page of text extracted from a file inode.
type Page struct {
	ID      int64
	InodeID int64
	// Index is 0-based and unique per inode.
	Index    int
	Contents string
	// HasEmbedding reports whether an embedding vector is assigned. The
	// vector itself stays in the database; nothing in the worker reads it
	// back.
	HasEmbedding bool
}

// PageText is the upsert payload for one page produced by ingest.
type PageText struct {
	Index    int
	Contents string
}

// Manager persists inodes and pages.
type Manager interface {
	// GetInode loads a single inode row. Returns errtypes.NotFound when the
	// row does not exist.
	GetInode(ctx context.Context, id int64) (*Inode, error)
	// SaveInode writes back the mutable columns of the given inode: flags,
	// window, path, should_move and error.
	SaveInode(ctx context.Context, in *Inode) error
	// CanonicalPath recomputes the inode's path from its ancestry via the
	// database's inode_path function. Authoritative whenever should_move is
	// set.
	CanonicalPath(ctx context.Context, id int64) (string, error)

	// UpsertPages inserts the given pages, updating contents on conflict of
	// (inode_id, index). Safe to re-run for the same inode.
	UpsertPages(ctx context.Context, inodeID int64, pages []PageText) error
	// PagesForIndex returns the inode's pages with non-empty contents,
	// ordered by index.
	PagesForIndex(ctx context.Context, inodeID int64) ([]Page, error)
	// PagesForEmbed returns the pages inside the inode's page window with
	// non-empty contents and no embedding yet, ordered by index.
	PagesForEmbed(ctx context.Context, in *Inode) ([]Page, error)
	// SetEmbeddings assigns vectors[i] to pageIDs[i].
	SetEmbeddings(ctx context.Context, pageIDs []int64, vectors [][]float32) error

	// MarkAllUnindexed clears is_indexed on every inode. Used by the index
	// rebuild command.
	MarkAllUnindexed(ctx context.Context) error
	// ListInodeIDs returns the ids of all inodes.
	ListInodeIDs(ctx context.Context) ([]int64, error)
}
