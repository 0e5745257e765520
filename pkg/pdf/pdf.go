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

// Package pdf wraps the tools the ingest stage runs an upload through:
// MIME sniffing, page counting, page slicing, a ghostscript repair pass,
// OCR with optimization, and per-page text extraction.
package pdf

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// Toolchain is the interface the ingest handler consumes.
type Toolchain interface {
	// IsPDF sniffs the file's content type.
	IsPDF(path string) (bool, error)
	// PageCount returns the number of pages.
	PageCount(path string) (int, error)
	// Repair streams the PDF through a print-to-new-PDF pass. This is the
	// only step that can recover damaged but openable PDFs.
	Repair(ctx context.Context, in, out string) error
	// Slice deletes the pages outside the half-open window [from, to) in
	// place.
	Slice(path string, from, to int) error
	// Optimize runs OCR plus lossless optimization in a child process and
	// waits for it. A crash of the native OCR stack kills the child, not
	// the worker.
	Optimize(ctx context.Context, in, out string) error
	// ExtractText returns the text of every page in reading order.
	ExtractText(path string) ([]string, error)
}

// Option configures the default toolchain.
type Option func(*toolchain)

// WithGhostscript overrides the ghostscript binary.
func WithGhostscript(bin string) Option {
	return func(t *toolchain) { t.gsBin = bin }
}

// WithOCRBinary overrides the ocrmypdf binary.
func WithOCRBinary(bin string) Option {
	return func(t *toolchain) { t.ocrBin = bin }
}

// WithLanguages sets the OCR language hint, e.g. "nld+eng".
func WithLanguages(langs string) Option {
	return func(t *toolchain) { t.languages = langs }
}

type toolchain struct {
	gsBin     string
	ocrBin    string
	languages string
}

// New returns the default toolchain backed by mupdf, pdfcpu, ghostscript
// and ocrmypdf.
func New(opts ...Option) Toolchain {
	t := &toolchain{
		gsBin:  "/usr/bin/gs",
		ocrBin: "ocrmypdf",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *toolchain) IsPDF(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, errors.Wrap(err, "pdf: error detecting mime type")
	}
	return mtype.Is("application/pdf"), nil
}

func (t *toolchain) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, errors.Wrap(err, "pdf: error opening document")
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func (t *toolchain) Repair(ctx context.Context, in, out string) error {
	cmd := exec.CommandContext(ctx, t.gsBin,
		"-dSAFER", "-dNOPAUSE", "-dBATCH",
		"-sDEVICE=pdfwrite",
		"-o", out,
		in,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "pdf: ghostscript failed: %s", stderr.String())
	}
	return nil
}

func (t *toolchain) Slice(path string, from, to int) error {
	count, err := t.PageCount(path)
	if err != nil {
		return err
	}

	selection := pagesOutsideWindow(from, to, count)
	if len(selection) == 0 {
		return nil
	}
	if err := api.RemovePagesFile(path, path, selection, nil); err != nil {
		return errors.Wrap(err, "pdf: error removing pages")
	}
	return nil
}

func (t *toolchain) Optimize(ctx context.Context, in, out string) error {
	cmd := exec.CommandContext(ctx, t.ocrBin, ocrArgs(t.languages, in, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "pdf: ocrmypdf failed: %s", stderr.String())
	}
	return nil
}

func (t *toolchain) ExtractText(path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.Wrap(err, "pdf: error opening document")
	}
	defer doc.Close()

	texts := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, errors.Wrapf(err, "pdf: error extracting text of page %d", i)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// pagesOutsideWindow returns the 1-based page numbers outside [from, to),
// last page first, so pages can be deleted without shifting the numbers of
// pages still to be deleted.
func pagesOutsideWindow(from, to, count int) []string {
	var pages []string
	for p := count; p > to; p-- {
		pages = append(pages, strconv.Itoa(p))
	}
	for p := from; p > 0; p-- {
		pages = append(pages, strconv.Itoa(p))
	}
	return pages
}

// ocrArgs is the fixed ocrmypdf invocation. Output is a plain linearized
// PDF, not PDF/A: the front-end needs byte-range requests and PDF/A breaks
// them.
func ocrArgs(languages, in, out string) []string {
	args := []string{
		"--output-type", "pdf",
		"--color-conversion-strategy", "RGB",
		"--jobs", "1",
		"--skip-text",
		"--optimize", "2",
		"--continue-on-soft-render-error",
		"--invalidate-digital-signatures",
		"--quiet",
	}
	if languages != "" {
		args = append(args, "--language", languages)
	}
	return append(args, in, out)
}
