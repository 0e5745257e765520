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

// Package search maintains the inodes search index: one document per
// inode with the pages nested below it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/pkg/errors"
)

// IndexName is the single index the worker maintains.
const IndexName = "inodes"

// indexBody is the fixed index configuration. The folder field uses a
// path_hierarchy tokenizer so a prefix search on a folder matches all of
// its descendants; page contents store term vectors for highlighting.
const indexBody = `{
	"settings": {
		"analysis": {
			"analyzer": {
				"path_analyzer": {
					"tokenizer": "path_hierarchy"
				}
			}
		}
	},
	"mappings": {
		"properties": {
			"path": {"type": "keyword"},
			"type": {"type": "keyword"},
			"folder": {"type": "text", "analyzer": "path_analyzer"},
			"filename": {"type": "text"},
			"owner_id": {"type": "keyword"},
			"is_public": {"type": "boolean"},
			"readable_by": {"type": "keyword"},
			"pages": {
				"type": "nested",
				"properties": {
					"index": {"type": "integer"},
					"contents": {"type": "text", "term_vector": "with_positions_offsets"}
				}
			}
		}
	}
}`

// Index talks to the opensearch cluster.
type Index struct {
	client  *opensearch.Client
	timeout time.Duration
}

// Option configures the index client.
type Option func(*Index)

// WithTimeout bounds every call to the cluster. The default of 30s keeps
// a stuck cluster from blocking a delivery forever.
func WithTimeout(d time.Duration) Option {
	return func(i *Index) { i.timeout = d }
}

// New returns a search index client. caCert may be empty; it is only read
// for https endpoints.
func New(endpoint, user, password, caCert string, opts ...Option) (*Index, error) {
	cfg := opensearch.Config{
		Addresses: []string{endpoint},
		Username:  user,
		Password:  password,
	}

	if caCert != "" && strings.HasPrefix(endpoint, "https") {
		pem, err := os.ReadFile(caCert)
		if err != nil {
			return nil, errors.Wrap(err, "search: error reading ca certificate")
		}
		cfg.CACert = pem
	}

	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "search: error creating client")
	}

	i := &Index{client: client, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// withDeadline bounds a single cluster call.
func (i *Index) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, i.timeout)
}

// Ensure creates the index with its fixed mapping. An already existing
// index is treated as success so the worker can be restarted freely.
func (i *Index) Ensure(ctx context.Context) error {
	ctx, cancel := i.withDeadline(ctx)
	defer cancel()

	req := opensearchapi.IndicesCreateRequest{
		Index: IndexName,
		Body:  strings.NewReader(indexBody),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, "search: error creating index")
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}
	if res.StatusCode == 400 && responseErrorType(res.Body) == "resource_already_exists_exception" {
		return nil
	}
	return errors.Errorf("search: error creating index: %s", res.String())
}

// Drop deletes the index. A missing index is not an error.
func (i *Index) Drop(ctx context.Context) error {
	ctx, cancel := i.withDeadline(ctx)
	defer cancel()

	req := opensearchapi.IndicesDeleteRequest{Index: []string{IndexName}}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, "search: error deleting index")
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return errors.Errorf("search: error deleting index: %s", res.String())
	}
	return nil
}

// Upsert writes the document for the given inode id, replacing whatever
// was there. Documents are routed by inode id.
func (i *Index) Upsert(ctx context.Context, id int64, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "search: error encoding document")
	}

	ctx, cancel := i.withDeadline(ctx)
	defer cancel()

	docID := strconv.FormatInt(id, 10)
	req := opensearchapi.IndexRequest{
		Index:      IndexName,
		DocumentID: docID,
		Routing:    docID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrapf(err, "search: error indexing document %d", id)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("search: error indexing document %d: %s", id, res.String())
	}
	return nil
}

// Delete removes the document for the given inode id. A missing document
// is not an error; the record may never have been indexed.
func (i *Index) Delete(ctx context.Context, id int64) error {
	ctx, cancel := i.withDeadline(ctx)
	defer cancel()

	docID := strconv.FormatInt(id, 10)
	req := opensearchapi.DeleteRequest{
		Index:      IndexName,
		DocumentID: docID,
		Routing:    docID,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrapf(err, "search: error deleting document %d", id)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return errors.Errorf("search: error deleting document %d: %s", id, res.String())
	}
	return nil
}

func responseErrorType(r io.Reader) string {
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error.Type
}
