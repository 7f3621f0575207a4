// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the ordered, append-only message log agents and the
// scheduler publish to. Observers are notified synchronously on publish.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/capflow/pkg/capability"
)

// Kind classifies a message.
type Kind string

const (
	KindRequest  Kind = "REQUEST"
	KindResponse Kind = "RESPONSE"
	KindEvent    Kind = "EVENT"
	KindQuery    Kind = "QUERY"
	KindResult   Kind = "RESULT"
	KindError    Kind = "ERROR"
)

// Message is one entry of the bus log.
type Message struct {
	ID         string                `json:"id"`
	Kind       Kind                  `json:"kind"`
	Sender     string                `json:"sender"`
	Capability capability.Capability `json:"capability"`
	Payload    any                   `json:"payload,omitempty"`
	Seq        uint64                `json:"seq"`
	Timestamp  time.Time             `json:"timestamp"`
}

// NewMessage builds a message ready to publish.
func NewMessage(kind Kind, sender string, c capability.Capability, payload any) Message {
	return Message{Kind: kind, Sender: sender, Capability: c, Payload: payload}
}

// Observer receives every published message.
type Observer func(ctx context.Context, msg Message)

// Bus keeps the message log in publish order.
type Bus struct {
	mu        sync.Mutex
	seq       uint64
	log       []Message
	observers []Observer
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers an observer. Observers run in registration order.
func (b *Bus) Subscribe(o Observer) {
	if o == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Publish stamps msg with a sequence number, id and timestamp, appends it to
// the log and notifies observers outside the lock.
func (b *Bus) Publish(ctx context.Context, msg Message) Message {
	b.mu.Lock()
	b.seq++
	msg.Seq = b.seq
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b.log = append(b.log, msg)
	observers := append([]Observer(nil), b.observers...)
	b.mu.Unlock()

	for _, o := range observers {
		o(ctx, msg)
	}
	return msg
}

// History returns a copy of the log.
func (b *Bus) History() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.log...)
}

// Filter returns the logged messages of the given kind.
func (b *Bus) Filter(kind Kind) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.log {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of logged messages.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.log)
}
