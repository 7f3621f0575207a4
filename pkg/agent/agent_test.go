// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/state"
)

func TestNewValidates(t *testing.T) {
	noop := WithHandler(func(context.Context, state.View) (state.Update, error) { return nil, nil })

	tests := []struct {
		name string
		id   string
		opts []Option
		want error
	}{
		{name: "missing handler", id: "a", opts: []Option{WithProvides(capability.ParseData)}, want: ErrMissingHandler},
		{name: "missing provides", id: "a", opts: []Option{noop}, want: ErrMissingProvides},
		{name: "empty id", id: "  ", opts: []Option{noop, WithProvides(capability.ParseData)}},
		{name: "invalid capability", id: "a", opts: []Option{noop, WithProvides(capability.Capability(99))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunReceivesView(t *testing.T) {
	a, err := New("question_generator",
		WithRole("writer"),
		WithDescription("builds questions"),
		WithRequires(capability.ParseData),
		WithProvides(capability.GenerateQuestions),
		WithHandler(func(_ context.Context, view state.View) (state.Update, error) {
			p, ok := view.Get(capability.ParseData)
			if !ok {
				t.Fatal("expected parse_data in view")
			}
			return state.Update{capability.GenerateQuestions: p.(string) + "?"}, nil
		}),
	)
	if err != nil {
		t.Fatalf("agent creation failed: %v", err)
	}
	if a.Role() != "writer" || a.Description() != "builds questions" {
		t.Fatalf("unexpected metadata: %q %q", a.Role(), a.Description())
	}

	out, err := a.Run(context.Background(), state.New(state.Update{capability.ParseData: "serum"}))
	if err != nil {
		t.Fatalf("agent run failed: %v", err)
	}
	if out[capability.GenerateQuestions] != "serum?" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestDescribe(t *testing.T) {
	a := MustNew("x",
		WithProvides(capability.FillFAQ),
		WithRequires(capability.ParseData, capability.GenerateQuestions),
		WithHandler(func(context.Context, state.View) (state.Update, error) { return nil, nil }),
	)
	d := Describe(a)
	if d.ID != "x" || d.Provides != capability.NewSet(capability.FillFAQ) {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d.Requires.Len() != 2 {
		t.Fatalf("expected 2 requirements, got %v", d.Requires)
	}
	if got := DescribeAll([]Agent{a}); len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("unexpected DescribeAll: %+v", got)
	}
}
