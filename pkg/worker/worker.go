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

// Package worker drives inodes through the ingest → embed → index
// pipeline and keeps the object store and search index converged to the
// database as inodes are moved, shared and deleted.
package worker

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/insight-platform/insight-worker/pkg/events"
	"github.com/insight-platform/insight-worker/pkg/inode"
	"github.com/insight-platform/insight-worker/pkg/pdf"
	"github.com/insight-platform/insight-worker/pkg/search"
)

// Blobstore is the slice of the object store the handlers need.
type Blobstore interface {
	Download(ctx context.Context, ownerID, path, target string) error
	UploadOptimized(ctx context.Context, ownerID, path, source string) error
	Move(ctx context.Context, ownerID, oldPath, newPath string) error
	Delete(ctx context.Context, ownerID, path string) []error
	SetPublicTags(ctx context.Context, ownerID, path string, isPublic bool) error
}

// Indexer is the slice of the search index the handlers need.
type Indexer interface {
	Upsert(ctx context.Context, id int64, doc search.Document) error
	Delete(ctx context.Context, id int64) error
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Publisher emits follow-up task events and user notifications.
type Publisher interface {
	PublishTask(ctx context.Context, routingKey string, ev events.TaskEvent) error
	PublishNotification(ctx context.Context, ownerID string, isPublic bool, n events.Notification) error
}

// Worker holds the adapters the stage handlers run against.
type Worker struct {
	store     inode.Manager
	blobs     Blobstore
	index     Indexer
	pdf       pdf.Toolchain
	embedder  Embedder
	publisher Publisher
	log       *zerolog.Logger
}

// New returns a Worker. publisher may be nil; fan-out and notifications
// are then skipped, which is what the one-shot CLI commands want.
func New(store inode.Manager, blobs Blobstore, index Indexer, toolchain pdf.Toolchain, embedder Embedder, publisher Publisher, log *zerolog.Logger) *Worker {
	return &Worker{
		store:     store,
		blobs:     blobs,
		index:     index,
		pdf:       toolchain,
		embedder:  embedder,
		publisher: publisher,
		log:       log,
	}
}

// Dispatch decodes one delivery and runs the matching stage handler. The
// returned error rejects the delivery without requeue.
func (w *Worker) Dispatch(ctx context.Context, routingKey string, body []byte) error {
	var ev events.TaskEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrapf(err, "worker: error decoding %s payload", routingKey)
	}

	if routingKey == events.TaskDeleteInode {
		if ev.Before == nil {
			return errors.Errorf("worker: %s payload carries no before", routingKey)
		}
		return w.DeleteInode(ctx, *ev.Before)
	}

	if ev.After == nil {
		return errors.Errorf("worker: %s payload carries no after", routingKey)
	}
	id := ev.After.ID

	switch routingKey {
	case events.TaskIngestInode:
		return w.IngestInode(ctx, id)
	case events.TaskEmbedInode:
		return w.EmbedInode(ctx, id)
	case events.TaskIndexInode:
		return w.IndexInode(ctx, id)
	case events.TaskMoveInode:
		return w.MoveInode(ctx, id)
	case events.TaskShareInode:
		return w.ShareInode(ctx, id)
	default:
		return errors.Errorf("worker: unknown routing key: %s", routingKey)
	}
}

// publishTask fans out a follow-up task event. Best effort: a lost
// follow-up stalls one inode, a failed delivery would stall the queue.
func (w *Worker) publishTask(ctx context.Context, routingKey string, id int64) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishTask(ctx, routingKey, events.NewTaskEvent(id)); err != nil {
		w.log.Error().Err(err).Int64("inode_id", id).Str("routing_key", routingKey).
			Msg("failed to publish task")
	}
}

// notifyTerminal tells the owner about an inode that reached a terminal
// state. The row is re-read first: another stage may have completed
// between this stage's commit and now, and the decision has to be made on
// the freshest view.
func (w *Worker) notifyTerminal(ctx context.Context, id int64, task string) {
	if w.publisher == nil {
		return
	}

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		w.log.Error().Err(err).Int64("inode_id", id).Msg("failed to re-read inode for notification")
		return
	}
	if !in.IsReady() && in.Error == nil {
		return
	}

	n := events.Notification{ID: id, Task: task}
	if err := w.publisher.PublishNotification(ctx, in.OwnerID.String(), in.IsPublic, n); err != nil {
		w.log.Error().Err(err).Int64("inode_id", id).Msg("failed to publish notification")
	}
}
