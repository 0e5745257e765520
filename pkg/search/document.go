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

package search

import (
	"path"

	"github.com/insight-platform/insight-worker/pkg/inode"
)

// PageEntry is one nested page of a document. Embeddings deliberately stay
// out of the index; vector search goes through the database.
type PageEntry struct {
	Index    int    `json:"index"`
	Contents string `json:"contents"`
}

// Document is the search index representation of one inode.
type Document struct {
	Path       string      `json:"path"`
	Type       string      `json:"type"`
	Folder     string      `json:"folder"`
	Filename   string      `json:"filename"`
	OwnerID    string      `json:"owner_id"`
	IsPublic   bool        `json:"is_public"`
	ReadableBy []string    `json:"readable_by"`
	Pages      []PageEntry `json:"pages"`
}

// BuildDocument derives the search document from an inode row and its
// pages. Page indices are shifted to be relative to the inode's page
// window so the front-end can address pages of the optimized PDF directly.
func BuildDocument(in *inode.Inode, pages []inode.Page) Document {
	owner := in.OwnerID.String()

	doc := Document{
		Path:       in.Path,
		Type:       string(in.Type),
		Folder:     path.Dir(in.Path),
		Filename:   in.Name,
		OwnerID:    owner,
		IsPublic:   in.IsPublic,
		ReadableBy: []string{owner},
		Pages:      make([]PageEntry, 0, len(pages)),
	}

	for _, p := range pages {
		doc.Pages = append(doc.Pages, PageEntry{
			Index:    p.Index - in.FromPage,
			Contents: p.Contents,
		})
	}
	return doc
}
