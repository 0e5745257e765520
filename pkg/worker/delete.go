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

// DeleteInode removes the derived state of a deleted inode. The row is
// gone, so the event carries everything needed. Cleanup is best effort:
// a missing object or document is not worth failing the delivery over.
func (w *Worker) DeleteInode(ctx context.Context, snap events.InodeSnapshot) error {
	w.log.Info().Int64("inode_id", snap.ID).Msg("deleting inode")

	if snap.Type == string(inode.TypeFile) {
		for _, err := range w.blobs.Delete(ctx, snap.OwnerID, snap.Path) {
			w.log.Error().Err(err).Int64("inode_id", snap.ID).Msg("error occurred when deleting object")
		}
	}

	if err := w.index.Delete(ctx, snap.ID); err != nil {
		// The document may never have existed.
		w.log.Error().Err(err).Int64("inode_id", snap.ID).Msg("error deleting search document")
	}
	return nil
}
