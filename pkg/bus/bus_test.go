// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jllopis/capflow/pkg/capability"
)

func TestPublishAssignsSequence(t *testing.T) {
	b := New()
	ctx := context.Background()

	first := b.Publish(ctx, NewMessage(KindResult, "a", capability.ParseData, nil))
	second := b.Publish(ctx, NewMessage(KindEvent, "b", capability.GenerateQuestions, "hi"))

	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(2), second.Seq)
	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.False(t, first.Timestamp.IsZero())
	require.Equal(t, 2, b.Len())
}

func TestHistoryIsACopy(t *testing.T) {
	b := New()
	b.Publish(context.Background(), NewMessage(KindResult, "a", capability.ParseData, nil))

	h := b.History()
	h[0].Sender = "mutated"
	require.Equal(t, "a", b.History()[0].Sender)
}

func TestFilterByKind(t *testing.T) {
	b := New()
	ctx := context.Background()
	b.Publish(ctx, NewMessage(KindResult, "a", capability.ParseData, nil))
	b.Publish(ctx, NewMessage(KindError, "b", capability.FillFAQ, "boom"))
	b.Publish(ctx, NewMessage(KindResult, "c", capability.FillTemplate, nil))

	results := b.Filter(KindResult)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].Sender)
	require.Equal(t, "c", results[1].Sender)
	require.Empty(t, b.Filter(KindQuery))
}

func TestObserversRunInOrder(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe(func(_ context.Context, m Message) { got = append(got, "first:"+m.Sender) })
	b.Subscribe(func(_ context.Context, m Message) { got = append(got, "second:"+m.Sender) })
	b.Subscribe(nil)

	b.Publish(context.Background(), NewMessage(KindResult, "a", capability.ParseData, nil))
	require.Equal(t, []string{"first:a", "second:a"}, got)
}

func TestObserverMayReadHistory(t *testing.T) {
	b := New()
	var seen int
	b.Subscribe(func(context.Context, Message) { seen = b.Len() })
	b.Publish(context.Background(), NewMessage(KindEvent, "a", capability.ParseData, nil))
	require.Equal(t, 1, seen)
}

func TestConcurrentPublishKeepsUniqueSequence(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(context.Background(), NewMessage(KindResult, "w", capability.ParseData, nil))
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for i, m := range b.History() {
		require.Equal(t, uint64(i+1), m.Seq)
		require.False(t, seen[m.Seq])
		seen[m.Seq] = true
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := New()
	b.Subscribe(LogObserver(logger))
	b.Subscribe(SpanObserver())
	b.Publish(context.Background(), NewMessage(KindResult, "data_parser", capability.ParseData, nil))

	out := buf.String()
	require.True(t, strings.Contains(out, "bus.message"), out)
	require.True(t, strings.Contains(out, "capability=parse_data"), out)
}
