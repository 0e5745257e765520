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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-platform/insight-worker/pkg/inode"
)

func TestIndexBody(t *testing.T) {
	var body struct {
		Mappings struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(indexBody), &body))

	for _, field := range []string{"path", "type", "folder", "filename", "owner_id", "is_public", "readable_by", "pages"} {
		assert.Contains(t, body.Mappings.Properties, field)
	}
}

func TestBuildDocument(t *testing.T) {
	owner := uuid.MustParse("9a354a61-7fc2-4d8c-bb92-a31a5b9c7402")
	in := &inode.Inode{
		ID:       1,
		OwnerID:  owner,
		Type:     inode.TypeFile,
		Name:     "report.pdf",
		Path:     "/projects/report.pdf",
		FromPage: 2,
	}
	pages := []inode.Page{
		{ID: 10, InodeID: 1, Index: 2, Contents: "page three"},
		{ID: 11, InodeID: 1, Index: 3, Contents: "page four"},
	}

	doc := BuildDocument(in, pages)

	assert.Equal(t, "/projects/report.pdf", doc.Path)
	assert.Equal(t, "file", doc.Type)
	assert.Equal(t, "/projects", doc.Folder)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, owner.String(), doc.OwnerID)
	assert.Equal(t, []string{owner.String()}, doc.ReadableBy)

	// Page indices are relative to the page window so they address pages
	// of the optimized PDF.
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, PageEntry{Index: 0, Contents: "page three"}, doc.Pages[0])
	assert.Equal(t, PageEntry{Index: 1, Contents: "page four"}, doc.Pages[1])
}

func TestBuildDocumentFolder(t *testing.T) {
	in := &inode.Inode{
		ID:      2,
		OwnerID: uuid.New(),
		Type:    inode.TypeFolder,
		Name:    "projects",
		Path:    "/projects",
	}

	doc := BuildDocument(in, nil)
	assert.Equal(t, "folder", doc.Type)
	assert.Equal(t, "/", doc.Folder)
	assert.Empty(t, doc.Pages)

	// The document must encode pages as an empty array, not null.
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"pages":[]`)
}

func TestUpsertTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	idx, err := New(srv.URL, "", "", "", WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	// A cluster that never answers must not block the caller beyond the
	// configured timeout, even without a deadline on the context.
	start := time.Now()
	err = idx.Upsert(context.Background(), 1, Document{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResponseErrorType(t *testing.T) {
	body := `{"error":{"type":"resource_already_exists_exception","reason":"index [inodes] already exists"},"status":400}`
	assert.Equal(t, "resource_already_exists_exception", responseErrorType(strings.NewReader(body)))
	assert.Equal(t, "", responseErrorType(strings.NewReader("not json")))
}
