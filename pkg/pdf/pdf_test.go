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

package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesOutsideWindow(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		count    int
		expected []string
	}{
		{
			name: "full document", from: 0, to: 5, count: 5,
			expected: nil,
		},
		{
			name: "tail only", from: 0, to: 3, count: 5,
			expected: []string{"5", "4"},
		},
		{
			name: "head only", from: 2, to: 5, count: 5,
			expected: []string{"2", "1"},
		},
		{
			name: "both ends", from: 1, to: 4, count: 6,
			expected: []string{"6", "5", "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Descending order: deleting a page must not renumber the pages
			// still to be deleted.
			assert.Equal(t, tt.expected, pagesOutsideWindow(tt.from, tt.to, tt.count))
		})
	}
}

func TestOcrArgs(t *testing.T) {
	args := ocrArgs("", "in.pdf", "out.pdf")
	assert.Equal(t, []string{
		"--output-type", "pdf",
		"--color-conversion-strategy", "RGB",
		"--jobs", "1",
		"--skip-text",
		"--optimize", "2",
		"--continue-on-soft-render-error",
		"--invalidate-digital-signatures",
		"--quiet",
		"in.pdf", "out.pdf",
	}, args)

	args = ocrArgs("nld+eng", "in.pdf", "out.pdf")
	assert.Contains(t, args, "--language")
	assert.Equal(t, []string{"in.pdf", "out.pdf"}, args[len(args)-2:])
}

func TestIsPDF(t *testing.T) {
	dir := t.TempDir()

	pdfPath := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.7\n%%EOF\n"), 0600))

	textPath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("just some text"), 0600))

	tc := New()
	ok, err := tc.IsPDF(pdfPath)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tc.IsPDF(textPath)
	require.NoError(t, err)
	assert.False(t, ok, "content sniffing must not trust the extension")
}
