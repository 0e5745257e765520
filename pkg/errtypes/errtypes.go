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

// Package errtypes contains definitions for common errors.
// It would have been nice to call this package errors, err or error
// but errors clashes with github.com/pkg/errors, err is used for any error
// variable and error is a reserved word :)
package errtypes

import "errors"

// NotFound is the error to use when a resource is not found.
type NotFound string

func (e NotFound) Error() string { return "error: not found: " + string(e) }

// IsNotFound is the method to check for w
func (e NotFound) IsNotFound() {}

// UnsupportedFileType is the error to use when an upload turns out not to
// be a PDF. It is persisted to the inode row and terminates the pipeline
// for that inode.
type UnsupportedFileType string

func (e UnsupportedFileType) Error() string {
	return "error: unsupported file type: " + string(e)
}

// InodeError returns the database enum value for this error.
func (e UnsupportedFileType) InodeError() string { return "unsupported_file_type" }

// IsIngestError implements the IngestError interface.
func (e UnsupportedFileType) IsIngestError() {}

// CorruptedFile is the error to use when a PDF cannot be opened, repaired
// or optimized. Like UnsupportedFileType it is persisted to the inode row.
type CorruptedFile string

func (e CorruptedFile) Error() string { return "error: corrupted file: " + string(e) }

// InodeError returns the database enum value for this error.
func (e CorruptedFile) InodeError() string { return "corrupted_file" }

// IsIngestError implements the IngestError interface.
func (e CorruptedFile) IsIngestError() {}

// IngestError is the interface implemented by errors that must be written
// back to the inodes table instead of failing the delivery.
type IngestError interface {
	error
	IsIngestError()
	InodeError() string
}

// IsNotFound is the interface to implement
// to specify that a resource is not found.
type IsNotFound interface {
	IsNotFound()
}

// AsIngestError unwraps err looking for an IngestError.
func AsIngestError(err error) (IngestError, bool) {
	var ie IngestError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
