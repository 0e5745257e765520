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

package main

import (
	"context"

	"github.com/insight-platform/insight-worker/pkg/events"
	amqpclient "github.com/insight-platform/insight-worker/pkg/events/amqp"
	sqlmanager "github.com/insight-platform/insight-worker/pkg/inode/manager/sql"
)

func createIndexCommand() *command {
	cmd := newCommand("create-index")
	cmd.Description = func() string { return "creates the search index with its mapping" }
	cmd.Action = func() error {
		conf, _, err := loadConfig()
		if err != nil {
			return err
		}

		index, err := newSearchIndex(conf)
		if err != nil {
			return err
		}
		return index.Ensure(context.Background())
	}
	return cmd
}

func deleteIndexCommand() *command {
	cmd := newCommand("delete-index")
	cmd.Description = func() string { return "deletes the search index" }
	cmd.Action = func() error {
		conf, _, err := loadConfig()
		if err != nil {
			return err
		}

		index, err := newSearchIndex(conf)
		if err != nil {
			return err
		}
		return index.Drop(context.Background())
	}
	return cmd
}

func rebuildIndexCommand() *command {
	cmd := newCommand("rebuild-index")
	cmd.Description = func() string { return "recreates the search index and queues a re-index of every inode" }
	cmd.Action = func() error {
		conf, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()

		index, err := newSearchIndex(conf)
		if err != nil {
			return err
		}
		if err := index.Drop(ctx); err != nil {
			return err
		}
		if err := index.Ensure(ctx); err != nil {
			return err
		}

		store, err := sqlmanager.New(conf.Database.URI)
		if err != nil {
			return err
		}
		if err := store.MarkAllUnindexed(ctx); err != nil {
			return err
		}
		ids, err := store.ListInodeIDs(ctx)
		if err != nil {
			return err
		}

		client, err := amqpclient.Connect(amqpclient.Options{
			Host:     conf.Broker.Host,
			User:     conf.Broker.User,
			Password: conf.Broker.Password,
			SSL:      conf.Broker.SSL,
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()

		for _, id := range ids {
			if err := client.PublishTask(ctx, events.TaskIndexInode, events.NewTaskEvent(id)); err != nil {
				return err
			}
		}
		log.Info().Int("inodes", len(ids)).Msg("queued re-index")
		return nil
	}
	return cmd
}
