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

// Package embed maps page text to fixed-dimension vectors via the OpenAI
// embeddings API.
package embed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// Dimension is the vector size of the embedding model and of the
	// pages.embedding column.
	Dimension = 1536

	// batchSize bounds the number of inputs per request.
	batchSize = 64

	// maxTokens is the token limit of the embedding model. Some uploads
	// contain posters at A0 format with font-size 11pt, so single pages do
	// overflow it.
	maxTokens = 8192

	encodingName = "cl100k_base"
)

// Embedder turns a list of texts into one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithTimeout sets the HTTP timeout. The default of 30s is the contract
// minimum; a stuck upstream must not block the worker forever.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.timeout = d }
}

type client struct {
	api      *openai.Client
	encoding *tiktoken.Tiktoken

	baseURL string
	timeout time.Duration
}

// New returns an OpenAI backed Embedder.
func New(apiKey string, opts ...Option) (Embedder, error) {
	c := &client{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: c.timeout}
	c.api = openai.NewClientWithConfig(cfg)

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrap(err, "embed: error loading token encoding")
	}
	c.encoding = encoding

	return c, nil
}

// Embed tokenizes and batches the texts and returns their vectors in input
// order. Tokens are sent instead of raw text so the truncation to the
// model limit happens on our side of the wire.
func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		input := make([][]int, 0, end-start)
		for _, text := range texts[start:end] {
			input = append(input, c.tokenize(text))
		}

		res, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestTokens{
			Input: input,
			Model: openai.SmallEmbedding3,
		})
		if err != nil {
			return nil, errors.Wrap(err, "embed: embedding request failed")
		}
		if len(res.Data) != len(input) {
			return nil, errors.Errorf("embed: got %d embeddings for %d inputs", len(res.Data), len(input))
		}

		for _, d := range res.Data {
			vectors = append(vectors, d.Embedding)
		}
	}

	return vectors, nil
}

// tokenize collapses whitespace runs and truncates to the model's token
// limit.
func (c *client) tokenize(text string) []int {
	collapsed := strings.Join(strings.Fields(text), " ")
	tokens := c.encoding.Encode(collapsed, nil, nil)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}
