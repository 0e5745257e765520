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

// Package amqp provides the RabbitMQ client used by `Consume` and the
// publish methods.
package amqp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/insight-platform/insight-worker/pkg/events"
)

// HandlerFunc processes one delivery. A non-nil error rejects the
// delivery without requeue; the broker redelivers only on worker crash.
type HandlerFunc func(ctx context.Context, routingKey string, body []byte) error

// Options configure the connection.
type Options struct {
	Host     string
	User     string
	Password string
	SSL      bool
}

// Client is a RabbitMQ connection with one consume channel and one
// publish channel. Publishes never share the consume channel: with
// prefetch 1 they would be starved behind unacked deliveries.
type Client struct {
	conn    *amqp091.Connection
	logger  *zerolog.Logger
	options Options

	mu  sync.Mutex
	pub *amqp091.Channel
}

// Connect dials the broker, retrying exponentially, and declares the two
// exchanges.
func Connect(o Options, log *zerolog.Logger) (*Client, error) {
	uri := amqp091.URI{
		Scheme:   "amqp",
		Host:     o.Host,
		Port:     5672,
		Username: o.User,
		Password: o.Password,
		Vhost:    "/",
	}
	if o.SSL {
		uri.Scheme = "amqps"
		uri.Port = 5671
	}

	var conn *amqp091.Connection
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	op := func() error {
		var err error
		if o.SSL {
			conn, err = amqp091.DialTLS(uri.String(), &tls.Config{MinVersion: tls.VersionTLS12})
		} else {
			conn, err = amqp091.Dial(uri.String())
		}
		if err != nil {
			log.Error().Err(err).Str("host", o.Host).Msg("can't connect to rabbitmq, retrying")
		}
		return err
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, errors.Wrap(err, "events: error connecting to broker")
	}

	c := &Client{conn: conn, logger: log, options: o}
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	if err := declareExchanges(ch); err != nil {
		return nil, err
	}
	return c, nil
}

func declareExchanges(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(events.TaskExchange, "direct", true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "events: error declaring exchange %s", events.TaskExchange)
	}
	if err := ch.ExchangeDeclare(events.NotificationExchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "events: error declaring exchange %s", events.NotificationExchange)
	}
	return nil
}

// channel returns the publish channel, reopening it when the broker has
// closed it.
func (c *Client) channel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pub != nil && !c.pub.IsClosed() {
		return c.pub, nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "events: error opening channel")
	}
	c.pub = ch
	return ch, nil
}

// PublishTask emits a task event on the task exchange. Task messages are
// persistent so a broker restart does not lose pipeline progress.
func (c *Client) PublishTask(ctx context.Context, routingKey string, ev events.TaskEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "events: error encoding task event")
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, events.TaskExchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "events: error publishing task %s", routingKey)
	}
	return nil
}

// PublishNotification emits a user notification on the notification
// exchange.
func (c *Client) PublishNotification(ctx context.Context, ownerID string, isPublic bool, n events.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "events: error encoding notification")
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}
	key := events.NotificationKey(ownerID, isPublic)
	err = ch.PublishWithContext(ctx, events.NotificationExchange, key, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return errors.Wrapf(err, "events: error publishing notification %s", key)
	}
	return nil
}

// Consume reads the named durable queue one message at a time and hands
// every delivery to handler. It blocks until ctx is cancelled or the
// delivery stream ends.
func (c *Client) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "events: error opening consume channel")
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "events: error declaring queue %s", queue)
	}
	// Prefetch 1: a handler publishes follow-up events before its own
	// delivery is acked.
	if err := ch.Qos(1, 0, false); err != nil {
		return errors.Wrap(err, "events: error setting prefetch")
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "events: error consuming queue %s", queue)
	}

	for d := range deliveries {
		if err := handler(ctx, d.RoutingKey, d.Body); err != nil {
			c.logger.Error().Err(err).
				Str("routing_key", d.RoutingKey).
				Msg("delivery failed")
			if err := d.Nack(false, false); err != nil {
				return errors.Wrap(err, "events: error rejecting delivery")
			}
			continue
		}
		if err := d.Ack(false); err != nil {
			return errors.Wrap(err, "events: error acknowledging delivery")
		}
	}

	return ctx.Err()
}

// Close shuts down the connection and all channels on it.
func (c *Client) Close() error {
	return c.conn.Close()
}
