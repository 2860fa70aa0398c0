package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

// TestBridgeDeliversInOrder moves every published event to the consumer in
// publish order and closes the channel after CloseSend.
func TestBridgeDeliversInOrder(t *testing.T) {
	t.Parallel()

	b := NewStreamBridge()
	const n = 200
	for i := 0; i < n; i++ {
		b.Publish(Event{Type: EventStepProgress, Message: fmt.Sprintf("event %d", i)})
	}
	b.CloseSend()

	var got []Event
	for evt := range b.Events() {
		got = append(got, evt)
	}
	require.Len(t, got, n)
	for i, evt := range got {
		require.Equal(t, fmt.Sprintf("event %d", i), evt.Message)
	}
}

// TestBridgeProducerNeverBlocks lets the producer run far ahead of a consumer
// that has not started reading.
func TestBridgeProducerNeverBlocks(t *testing.T) {
	t.Parallel()

	b := NewStreamBridge()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			b.Publish(Event{Type: EventStepProgress})
		}
		b.CloseSend()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on an unread bridge")
	}

	var count int
	for range b.Events() {
		count++
	}
	require.Equal(t, 5000, count)
}

// TestBridgeCloseSendIsIdempotent tolerates repeated close calls.
func TestBridgeCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	b := NewStreamBridge()
	b.Publish(Event{Type: EventStepStart})
	b.CloseSend()
	b.CloseSend()

	var count int
	for range b.Events() {
		count++
	}
	require.Equal(t, 1, count)
}

// TestRunProducerRecoversPanic converts a producer panic into the terminal
// step_error before closing the stream; no final_result follows.
func TestRunProducerRecoversPanic(t *testing.T) {
	t.Parallel()

	b := NewStreamBridge()
	b.RunProducer(nil, nil, func(emit *Emitter) {
		emit.StepStart(StepValidate, "validate", "starting")
		panic("boom")
	})

	var got []Event
	for evt := range b.Events() {
		got = append(got, evt)
	}
	require.Len(t, got, 2)
	require.Equal(t, EventStepStart, got[0].Type)

	last := got[1]
	require.Equal(t, EventStepError, last.Type)
	require.Equal(t, discovery.ErrTypeExecutionError, last.ErrorType)
	require.Contains(t, last.Message, "boom")
	require.NotNil(t, last.Result)
	require.Equal(t, discovery.RunError, last.Result.Status)
	require.Equal(t, discovery.ErrTypeExecutionError, last.Result.ErrorType)
}

// TestRunProducerClosesStreamOnReturn ends the consumer loop once fn returns.
func TestRunProducerClosesStreamOnReturn(t *testing.T) {
	t.Parallel()

	b := NewStreamBridge()
	b.RunProducer(nil, nil, func(emit *Emitter) {
		emit.FinalResult(discovery.RunResult{Status: discovery.RunSuccess})
	})

	var got []Event
	for evt := range b.Events() {
		got = append(got, evt)
	}
	require.Len(t, got, 1)
	require.Equal(t, EventFinalResult, got[0].Type)
}
