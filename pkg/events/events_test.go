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

package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationKey(t *testing.T) {
	assert.Equal(t, "public", NotificationKey("9a354a61-7fc2-4d8c-bb92-a31a5b9c7402", true))
	assert.Equal(t, "user-9a354a61-7fc2-4d8c-bb92-a31a5b9c7402", NotificationKey("9a354a61-7fc2-4d8c-bb92-a31a5b9c7402", false))
}

func TestTaskEventEncoding(t *testing.T) {
	body, err := json.Marshal(NewTaskEvent(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"after":{"id":42}}`, string(body))

	var ev TaskEvent
	require.NoError(t, json.Unmarshal([]byte(`{"before":{"id":7,"owner_id":"abc","path":"/x.pdf","type":"file"}}`), &ev))
	assert.Nil(t, ev.After)
	require.NotNil(t, ev.Before)
	assert.Equal(t, int64(7), ev.Before.ID)
	assert.Equal(t, "file", ev.Before.Type)
}
