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

package errtypes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsIngestError(t *testing.T) {
	ie, ok := AsIngestError(UnsupportedFileType("/x.txt"))
	require.True(t, ok)
	assert.Equal(t, "unsupported_file_type", ie.InodeError())

	// Classification must survive wrapping.
	wrapped := errors.Wrap(CorruptedFile("/x.pdf"), "ingest failed")
	ie, ok = AsIngestError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "corrupted_file", ie.InodeError())

	_, ok = AsIngestError(errors.New("connection refused"))
	assert.False(t, ok)
}
