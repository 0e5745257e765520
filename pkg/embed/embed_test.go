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

package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input [][]int `json:"input"`
	Model string  `json:"model"`
}

// fakeAPI answers the embeddings endpoint with one counter-valued vector
// per input so input order is visible in the output.
func fakeAPI(t *testing.T, requests *[]embeddingRequest) *httptest.Server {
	var counter int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			data[i] = datum{Index: i, Embedding: []float32{float32(counter)}}
			counter++
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":%q,"data":%s}`, req.Model, mustJSON(t, data))
	}))
}

func mustJSON(t *testing.T, v interface{}) []byte {
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

// newTestEmbedder skips the test when the token encoding cannot be
// loaded, e.g. on an offline machine with a cold cache.
func newTestEmbedder(t *testing.T, opts ...Option) Embedder {
	e, err := New("test-key", opts...)
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	return e
}

func TestEmbedBatches(t *testing.T) {
	var requests []embeddingRequest
	srv := fakeAPI(t, &requests)
	defer srv.Close()

	e := newTestEmbedder(t, WithBaseURL(srv.URL))

	texts := make([]string, 130)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d", i)
	}

	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	// 130 texts at a batch size of 64 means three requests.
	require.Len(t, requests, 3)
	assert.Len(t, requests[0].Input, 64)
	assert.Len(t, requests[1].Input, 64)
	assert.Len(t, requests[2].Input, 2)

	require.Len(t, vectors, 130)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i)}, v, "vectors must come back in input order")
	}
}

func TestEmbedEmpty(t *testing.T) {
	var requests []embeddingRequest
	srv := fakeAPI(t, &requests)
	defer srv.Close()

	e := newTestEmbedder(t, WithBaseURL(srv.URL))

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, requests, "no texts, no request")
}

func TestTokenize(t *testing.T) {
	c := newTestEmbedder(t).(*client)

	short := c.tokenize("hello   world\n\nhello")
	collapsed := c.encoding.Decode(short)
	assert.Equal(t, "hello world hello", collapsed, "whitespace runs must collapse to single spaces")

	long := strings.Repeat("word ", maxTokens*2)
	assert.Len(t, c.tokenize(long), maxTokens, "oversized pages are truncated to the model limit")
}
