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
	"errors"
	"os/signal"
	"syscall"

	"github.com/insight-platform/insight-worker/pkg/embed"
	amqpclient "github.com/insight-platform/insight-worker/pkg/events/amqp"
	sqlmanager "github.com/insight-platform/insight-worker/pkg/inode/manager/sql"
	"github.com/insight-platform/insight-worker/pkg/pdf"
	"github.com/insight-platform/insight-worker/pkg/storage/blobstore"
	"github.com/insight-platform/insight-worker/pkg/worker"
)

func processMessagesCommand() *command {
	cmd := newCommand("process-messages")
	cmd.Description = func() string { return "consumes the task queue and runs the pipeline" }
	cmd.Action = func() error {
		conf, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := sqlmanager.New(conf.Database.URI)
		if err != nil {
			return err
		}

		blobs, err := blobstore.New(conf.Storage.Endpoint, conf.Storage.Region, conf.Storage.Bucket,
			conf.Storage.AccessKey, conf.Storage.SecretKey)
		if err != nil {
			return err
		}

		index, err := newSearchIndex(conf)
		if err != nil {
			return err
		}
		// The mapping has to exist before the first upsert.
		if err := index.Ensure(ctx); err != nil {
			return err
		}

		embedder, err := embed.New(conf.Embedder.APIKey)
		if err != nil {
			return err
		}

		toolchain := pdf.New(pdf.WithLanguages(conf.OCR.Languages))

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

		w := worker.New(store, blobs, index, toolchain, embedder, client, log)

		log.Info().Str("queue", conf.Queue).Msg("processing messages")
		err = client.Consume(ctx, conf.Queue, w.Dispatch)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("shutting down")
			return nil
		}
		return err
	}
	return cmd
}
