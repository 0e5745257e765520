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
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/insight-platform/insight-worker/pkg/errtypes"
	"github.com/insight-platform/insight-worker/pkg/events"
	"github.com/insight-platform/insight-worker/pkg/inode"
)

// IngestInode turns the uploaded PDF into an OCRd, optimized derivative
// and the per-page text rows. The optimized PDF is linearized for "fast
// web view" so the front-end can load it with byte-range requests.
//
// The handler is idempotent: page upserts are keyed by (inode_id, index)
// and the optimized object is replaced wholesale, so re-running it for
// the same inode converges to the same state.
func (w *Worker) IngestInode(ctx context.Context, id int64) error {
	w.log.Info().Int64("inode_id", id).Msg("ingesting inode")

	dir, err := os.MkdirTemp("", "insight-ingest-")
	if err != nil {
		return errors.Wrap(err, "worker: error creating scratch directory")
	}
	defer os.RemoveAll(dir)

	in, err := w.store.GetInode(ctx, id)
	if err != nil {
		return err
	}

	// A failed download is transient: reject the delivery instead of
	// marking the inode ingested.
	original := filepath.Join(dir, "original")
	if err := w.blobs.Download(ctx, in.OwnerID.String(), in.Path, original); err != nil {
		return err
	}

	ingestErr := w.ingest(ctx, in, dir)

	if ingestErr != nil {
		if ie, ok := errtypes.AsIngestError(ingestErr); ok {
			enum := ie.InodeError()
			in.Error = &enum
		} else {
			// Anything else is logged but the inode is still marked
			// ingested: ill-formed inputs must not loop forever through
			// the queue.
			w.log.Error().Err(ingestErr).Int64("inode_id", id).Msg("error occurred during ingest")
		}
	}

	in.IsIngested = true
	if err := w.store.SaveInode(ctx, in); err != nil {
		return err
	}

	w.publishTask(ctx, events.TaskEmbedInode, id)
	w.publishTask(ctx, events.TaskIndexInode, id)
	w.notifyTerminal(ctx, id, events.TaskIngestInode)
	return nil
}

// ingest runs the transformation steps and returns the error to classify.
func (w *Worker) ingest(ctx context.Context, in *inode.Inode, dir string) error {
	original := filepath.Join(dir, "original")
	repaired := filepath.Join(dir, "repaired")
	optimized := filepath.Join(dir, "optimized")
	owner := in.OwnerID.String()

	// Is the upload actually a PDF?
	isPDF, err := w.pdf.IsPDF(original)
	if err != nil {
		return err
	}
	if !isPDF {
		return errtypes.UnsupportedFileType(in.Path)
	}

	// Store the length of the PDF
	if in.ToPage == nil {
		count, err := w.pdf.PageCount(original)
		if err != nil {
			return errtypes.CorruptedFile(in.Path)
		}
		in.ToPage = &count
	}

	if err := w.pdf.Repair(ctx, original, repaired); err != nil {
		return errtypes.CorruptedFile(in.Path)
	}
	if err := w.pdf.Slice(repaired, in.FromPage, *in.ToPage); err != nil {
		return errtypes.CorruptedFile(in.Path)
	}
	if err := w.pdf.Optimize(ctx, repaired, optimized); err != nil {
		return errtypes.CorruptedFile(in.Path)
	}

	if err := w.blobs.UploadOptimized(ctx, owner, in.Path, optimized); err != nil {
		return err
	}

	// A public inode needs its optimized object to be public too.
	if in.IsPublic {
		if err := w.blobs.SetPublicTags(ctx, owner, in.Path, true); err != nil {
			return err
		}
	}

	texts, err := w.pdf.ExtractText(optimized)
	if err != nil {
		return err
	}

	pages := make([]inode.PageText, 0, len(texts))
	for i, text := range texts {
		pages = append(pages, inode.PageText{
			// Index pages in the file, not in the sliced window.
			Index: in.FromPage + i,
			// Postgres text columns cannot hold NUL bytes.
			Contents: strings.ReplaceAll(text, "\x00", ""),
		})
	}
	return w.store.UpsertPages(ctx, in.ID, pages)
}
