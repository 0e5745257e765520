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

package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const owner = "9a354a61-7fc2-4d8c-bb92-a31a5b9c7402"

func TestObjectKey(t *testing.T) {
	assert.Equal(t,
		"users/9a354a61-7fc2-4d8c-bb92-a31a5b9c7402/projects/report.pdf",
		ObjectKey(owner, "/projects/report.pdf"))
}

func TestOptimizedObjectKey(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{
			path:     "/projects/report.pdf",
			expected: "users/" + owner + "/projects/report_optimized.pdf",
		},
		{
			// The suffix goes before the first dot of the basename.
			path:     "/projects/report.v2.pdf",
			expected: "users/" + owner + "/projects/report_optimized.v2.pdf",
		},
		{
			path:     "/pro.jects/report.pdf",
			expected: "users/" + owner + "/pro.jects/report_optimized.pdf",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, OptimizedObjectKey(owner, tt.path), tt.path)
	}
}
