/*
Copyright (c) 2025 Diagrid Inc.
Licensed under the MIT License.
*/

package consumer

import (
	"time"

	"github.com/dapr/kit/ptr"

	"github.com/diagridio/go-rhythm/api"
)

type Options struct {
	Sink chan<- *api.Event
}

// Consumer is responsible for optionally sending schedule lifecycle events to
// the Sink. Sends block until the Sink is read.
type Consumer struct {
	sink chan<- *api.Event
}

func New(opts Options) *Consumer {
	return &Consumer{
		sink: opts.Sink,
	}
}

func (c *Consumer) Started(name string) {
	c.send(&api.Event{Type: api.EventStarted, Name: name})
}

func (c *Consumer) Stopped(name string) {
	c.send(&api.Event{Type: api.EventStopped, Name: name})
}

func (c *Consumer) Scheduled(name string, at time.Time) {
	c.send(&api.Event{Type: api.EventScheduled, Name: name, Instant: ptr.Of(at)})
}

func (c *Consumer) Triggered(name string, at time.Time) {
	c.send(&api.Event{Type: api.EventTriggered, Name: name, Instant: ptr.Of(at)})
}

func (c *Consumer) Exhausted(name string) {
	c.send(&api.Event{Type: api.EventExhausted, Name: name})
}

func (c *Consumer) send(event *api.Event) {
	if c == nil || c.sink == nil {
		return
	}

	c.sink <- event
}
