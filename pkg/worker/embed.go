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

package worker

import (
	"context"

	"github.com/pkg/errors"

	"github.com/insight-platform/insight-worker/pkg/events"
)

// EmbedInode assigns an embedding vector to every page of the inode that
// has text but no vector yet. Re-running it after a successful pass is a
// no-op: the null-embedding filter leaves nothing to do and the provider
// is never called.
func (w *Worker) EmbedInode(ctx context.Context, id int64) error {
	w.log.Info().Int64("inode_id", id).Msg("embedding inode")

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		return err
	}
	if in.Error != nil {
		return errors.Errorf("worker: cannot embed errored inode %d", id)
	}

	pages, err := w.store.PagesForEmbed(ctx, in)
	if err != nil {
		return err
	}

	if len(pages) > 0 {
		texts := make([]string, 0, len(pages))
		ids := make([]int64, 0, len(pages))
		for _, p := range pages {
			texts = append(texts, p.Contents)
			ids = append(ids, p.ID)
		}

		vectors, err := w.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if err := w.store.SetEmbeddings(ctx, ids, vectors); err != nil {
			return err
		}
	}

	in.IsEmbedded = true
	if err := w.store.SaveInode(ctx, in); err != nil {
		return err
	}

	w.publishTask(ctx, events.TaskIndexInode, id)
	w.notifyTerminal(ctx, id, events.TaskEmbedInode)
	return nil
}
