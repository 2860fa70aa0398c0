package pipeline

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
)

// StreamBridge carries events from one producing run goroutine to one
// consumer. Delivery is FIFO with no loss and no duplication; the producer
// never blocks on a slow consumer because the bridge buffers without bound.
// Closing the send side ends the consumer's Events channel after the buffer
// drains.
type StreamBridge struct {
	in  chan Event
	out chan Event

	closeOnce sync.Once
}

// NewStreamBridge starts the shuttle goroutine and returns a ready bridge.
func NewStreamBridge() *StreamBridge {
	b := &StreamBridge{
		in:  make(chan Event, 16),
		out: make(chan Event),
	}
	go b.shuttle()
	return b
}

// Publish enqueues one event. Must not be called after CloseSend.
func (b *StreamBridge) Publish(evt Event) {
	b.in <- evt
}

// CloseSend marks the producer finished. Safe to call more than once.
func (b *StreamBridge) CloseSend() {
	b.closeOnce.Do(func() { close(b.in) })
}

// Events is the consumer side. The channel closes once the producer called
// CloseSend and every buffered event was delivered.
func (b *StreamBridge) Events() <-chan Event {
	return b.out
}

// shuttle moves events from in to out through an unbounded buffer, keeping
// arrival order.
func (b *StreamBridge) shuttle() {
	var buf []Event
	in := b.in
	for in != nil || len(buf) > 0 {
		var out chan Event
		var next Event
		if len(buf) > 0 {
			out = b.out
			next = buf[0]
		}
		select {
		case evt, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, evt)
		case out <- next:
			buf = buf[1:]
		}
	}
	close(b.out)
}

// RunProducer executes fn on a new goroutine as the bridge's single producer
// and closes the send side when it returns. A panic inside fn is recovered
// and surfaced to the consumer as the terminal step_error instead of tearing
// the stream down silently.
func (b *StreamBridge) RunProducer(clock discovery.Clock, logger *zap.Logger, fn func(emit *Emitter)) {
	if clock == nil {
		clock = discovery.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	emit := NewEmitter(clock, b.Publish)
	go func() {
		defer b.CloseSend()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("pipeline run panicked", zap.Any("panic", r))
				emit.StepFailed("", discovery.RunResult{
					Status:    discovery.RunError,
					Message:   fmt.Sprintf("internal error: %v", r),
					ErrorType: discovery.ErrTypeExecutionError,
				})
			}
		}()
		fn(emit)
	}()
}
