// Package pipeline orchestrates a discovery run and streams its progress
// events to a single consumer.
package pipeline

import (
	"time"

	"github.com/salescout/discovery/internal/discovery"
)

// EventType classifies one progress event.
type EventType string

// Supported event types.
const (
	EventStepStart    EventType = "step_start"
	EventAIThinking   EventType = "ai_thinking"
	EventStepProgress EventType = "step_progress"
	EventStepComplete EventType = "step_complete"
	EventStepError    EventType = "step_error"
	EventFinalResult  EventType = "final_result"
)

// Pipeline step identifiers. Ranking sits between filter and import and keeps
// a fractional id so step numbering stays stable for consumers.
const (
	StepValidate = "0"
	StepIntent   = "1"
	StepCriteria = "2"
	StepSearch   = "3"
	StepCrawl    = "4"
	StepFilter   = "5"
	StepRanking  = "5.5"
	StepImport   = "6"
)

// Event is one progress message of a discovery run.
type Event struct {
	Type      EventType            `json:"type"`
	Step      string               `json:"step,omitempty"`
	StepName  string               `json:"step_name,omitempty"`
	Message   string               `json:"message,omitempty"`
	ErrorType discovery.ErrorType  `json:"error_type,omitempty"`
	Data      map[string]any       `json:"data,omitempty"`
	Result    *discovery.RunResult `json:"result,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Emitter stamps events with a clock and hands them to a publish function.
type Emitter struct {
	clock   discovery.Clock
	publish func(Event)
}

// NewEmitter builds an Emitter over publish. A nil clock falls back to the
// system clock.
func NewEmitter(clock discovery.Clock, publish func(Event)) *Emitter {
	if clock == nil {
		clock = discovery.SystemClock{}
	}
	return &Emitter{clock: clock, publish: publish}
}

// StepStart announces a step beginning.
func (e *Emitter) StepStart(step, name, message string) {
	e.publish(Event{
		Type:      EventStepStart,
		Step:      step,
		StepName:  name,
		Message:   message,
		Timestamp: e.clock.Now(),
	})
}

// Thinking surfaces model latency to the consumer while an LLM call runs.
func (e *Emitter) Thinking(step, message string) {
	e.publish(Event{
		Type:      EventAIThinking,
		Step:      step,
		Message:   message,
		Timestamp: e.clock.Now(),
	})
}

// Progress reports intermediate step state.
func (e *Emitter) Progress(step, message string, data map[string]any) {
	e.publish(Event{
		Type:      EventStepProgress,
		Step:      step,
		Message:   message,
		Data:      data,
		Timestamp: e.clock.Now(),
	})
}

// StepComplete announces a step finishing, with optional payload.
func (e *Emitter) StepComplete(step, message string, data map[string]any) {
	e.publish(Event{
		Type:      EventStepComplete,
		Step:      step,
		Message:   message,
		Data:      data,
		Timestamp: e.clock.Now(),
	})
}

// StepFailed emits the terminal event of a failed run: a step_error carrying
// the full result payload. Failed runs emit no final_result, so every run
// ends with exactly one terminal event.
func (e *Emitter) StepFailed(step string, result discovery.RunResult) {
	e.publish(Event{
		Type:      EventStepError,
		Step:      step,
		Message:   result.Message,
		ErrorType: result.ErrorType,
		Result:    &result,
		Timestamp: e.clock.Now(),
	})
}

// FinalResult emits the terminal payload of a successful run.
func (e *Emitter) FinalResult(result discovery.RunResult) {
	e.publish(Event{
		Type:      EventFinalResult,
		Message:   result.Message,
		Result:    &result,
		Timestamp: e.clock.Now(),
	})
}
