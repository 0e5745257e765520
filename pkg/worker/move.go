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
	"github.com/insight-platform/insight-worker/pkg/inode"
)

// MoveInode relocates the inode's objects to the path the database
// computes from its ancestry. Descendants are not walked here: the path
// function is a transitive view and whoever mutated the tree emits an
// index event per descendant.
func (w *Worker) MoveInode(ctx context.Context, id int64) error {
	w.log.Info().Int64("inode_id", id).Msg("moving inode")

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		return err
	}
	canonical, err := w.store.CanonicalPath(ctx, id)
	if err != nil {
		return err
	}

	// If the path didn't change there is nothing to converge.
	if canonical == in.Path {
		return nil
	}

	if in.Type == inode.TypeFile {
		if err := w.blobs.Move(ctx, in.OwnerID.String(), in.Path, canonical); err != nil {
			return err
		}
	}

	// Move successful; object keys are derived from the path.
	in.Path = canonical
	in.ShouldMove = false
	if err := w.store.SaveInode(ctx, in); err != nil {
		return err
	}

	// Re-index so path, folder and readable_by catch up.
	w.publishTask(ctx, events.TaskIndexInode, id)
	return nil
}
