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

// ShareInode re-applies the is_public tag on the inode's objects and
// re-indexes it so the search document's share status catches up. Folders
// carry no objects, only the re-index applies.
func (w *Worker) ShareInode(ctx context.Context, id int64) error {
	w.log.Info().Int64("inode_id", id).Msg("sharing inode")

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		return err
	}

	if in.Type == inode.TypeFile {
		if err := w.blobs.SetPublicTags(ctx, in.OwnerID.String(), in.Path, in.IsPublic); err != nil {
			return err
		}
	}

	w.publishTask(ctx, events.TaskIndexInode, id)
	return nil
}
