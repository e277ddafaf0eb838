package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestEventPayloadShape(t *testing.T) {
	t.Parallel()

	event := Event{
		RunID:     "run-1",
		Kind:      KindRunCompleted,
		Message:   "sync finished",
		Timestamp: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Fields: map[string]any{
			"created": 3,
			"updated": 1,
		},
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Equal(t, "run_completed", decoded["kind"])
	assert.Equal(t, "sync finished", decoded["message"])

	fields, ok := decoded["fields"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, fields["created"])
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	a := &recordingSink{}
	b := &recordingSink{}
	multi := NewMulti(a, nil, b)

	event := Event{RunID: "run-2", Kind: KindRunStarted}
	require.NoError(t, multi.Publish(context.Background(), event))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestMultiToleratesFailingSink(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{err: assert.AnError}
	healthy := &recordingSink{}
	multi := NewMulti(failing, healthy)

	require.NoError(t, multi.Publish(context.Background(), Event{Kind: KindClientError}))
	assert.Len(t, healthy.events, 1)
}
