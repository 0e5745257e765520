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

// Package events defines the messages flowing through the broker: the
// inode task events the worker consumes and re-emits, and the
// notifications it pushes to users.
package events

// Routing keys of the task events. The same keys are consumed from the
// input queue and republished to the task exchange for fan-out.
const (
	TaskIngestInode = "ingest_inode"
	TaskEmbedInode  = "embed_inode"
	TaskIndexInode  = "index_inode"
	TaskMoveInode   = "move_inode"
	TaskShareInode  = "share_inode"
	TaskDeleteInode = "delete_inode"
)

// Exchange names.
const (
	// TaskExchange is the direct exchange task events fan out over.
	TaskExchange = "insight"
	// NotificationExchange is the topic exchange user notifications go to.
	NotificationExchange = "user"
)

// InodeRef identifies an inode that still exists; every task event except
// delete carries one.
type InodeRef struct {
	ID int64 `json:"id"`
}

// InodeSnapshot carries the fields of a deleted inode. The row is gone by
// the time the delete event is handled, so lookup is impossible.
type InodeSnapshot struct {
	ID      int64  `json:"id"`
	OwnerID string `json:"owner_id"`
	Path    string `json:"path"`
	Type    string `json:"type"`
}

// TaskEvent is the payload of a task message. After is set on every event
// except delete; Before only on delete.
type TaskEvent struct {
	After  *InodeRef      `json:"after,omitempty"`
	Before *InodeSnapshot `json:"before,omitempty"`
}

// NewTaskEvent returns the payload for a live inode.
func NewTaskEvent(id int64) TaskEvent {
	return TaskEvent{After: &InodeRef{ID: id}}
}

// Notification is the payload of a user-visible message. Emitted only
// when an inode reaches a terminal state, ready or errored.
type Notification struct {
	ID   int64  `json:"id"`
	Task string `json:"task"`
}

// NotificationKey returns the routing key of a notification on the
// notification exchange: public inodes notify everyone, private ones only
// their owner.
func NotificationKey(ownerID string, isPublic bool) string {
	if isPublic {
		return "public"
	}
	return "user-" + ownerID
}
