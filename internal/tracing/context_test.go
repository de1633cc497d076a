package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithTurnID(ctx, "turn-1")
	ctx = WithRole(ctx, "planner")

	tc := FromContext(ctx)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Equal(t, "turn-1", tc.TurnID)
	assert.Equal(t, "planner", tc.Role)
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTurnID(ctx))
	assert.Empty(t, GetRole(ctx))
}

func TestNewTurnContext(t *testing.T) {
	t.Run("generates trace id", func(t *testing.T) {
		ctx := NewTurnContext(context.Background(), "turn-abc")

		assert.NotEmpty(t, GetTraceID(ctx))
		assert.Equal(t, "turn-abc", GetTurnID(ctx))
	})

	t.Run("keeps existing trace id", func(t *testing.T) {
		parent := WithTraceID(context.Background(), "trace-keep")
		ctx := NewTurnContext(parent, "turn-abc")

		assert.Equal(t, "trace-keep", GetTraceID(ctx))
	})
}
