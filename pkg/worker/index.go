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

	"github.com/insight-platform/insight-worker/pkg/events"
	"github.com/insight-platform/insight-worker/pkg/search"
)

// IndexInode upserts the inode's search document. The upsert is
// unconditional, so repeated application converges; errored inodes are
// indexed too because the front-end lists them.
func (w *Worker) IndexInode(ctx context.Context, id int64) error {
	w.log.Info().Int64("inode_id", id).Msg("indexing inode")

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		return err
	}
	pages, err := w.store.PagesForIndex(ctx, id)
	if err != nil {
		return err
	}

	doc := search.BuildDocument(in, pages)
	if err := w.index.Upsert(ctx, id, doc); err != nil {
		// Not marked indexed; the delivery is rejected and the broker
		// redelivers after a restart.
		return err
	}

	in.IsIndexed = true
	if err := w.store.SaveInode(ctx, in); err != nil {
		return err
	}

	w.notifyTerminal(ctx, id, events.TaskIndexInode)
	return nil
}
