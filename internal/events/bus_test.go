package events

import (
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewQuestionStartedEvent("q-1", "What is Azure AI?", 2000, 3))

	select {
	case received := <-ch:
		if received.EventType() != TypeQuestionStarted {
			t.Errorf("expected %s, got %s", TypeQuestionStarted, received.EventType())
		}
		if received.QuestionID() != "q-1" {
			t.Errorf("expected q-1, got %s", received.QuestionID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestBus_SubscribeByType(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	reasoningCh := bus.Subscribe(TypeReasoning)
	allCh := bus.Subscribe()

	bus.Publish(NewQuestionStartedEvent("q-1", "prompt text", 2000, 3))
	bus.Publish(NewReasoningEvent("q-1", "checking answer length"))

	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("allCh should receive both events")
		}
	}

	select {
	case received := <-reasoningCh:
		if received.EventType() != TypeReasoning {
			t.Errorf("expected reasoning, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("reasoningCh should receive reasoning event")
	}
	select {
	case e := <-reasoningCh:
		t.Errorf("reasoningCh received unexpected event %s", e.EventType())
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus(5)
	defer bus.Close()

	bus.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(NewReasoningEvent("q-1", "line"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if bus.Dropped() == 0 {
		t.Error("expected drops when subscriber is saturated")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(NewReasoningEvent("q-1", "line"))
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus(10)
	bus.Close()
	bus.Publish(NewReasoningEvent("q-1", "line")) // no panic
	bus.Close()                                   // double close is safe
}

func TestSink_PublishesProgressAndReasoning(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe(TypeAgentProgress, TypeReasoning)

	sink := NewSink(bus, "q-9")
	sink.Progress("question answerer", "generating", 0.25)
	sink.Reasoning("attempt 1 started")

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			got[e.EventType()] = true
			if e.QuestionID() != "q-9" {
				t.Errorf("expected q-9, got %s", e.QuestionID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout")
		}
	}
	if !got[TypeAgentProgress] || !got[TypeReasoning] {
		t.Errorf("missing event types: %v", got)
	}
}

func TestAgentProgressEvent_ClampsFraction(t *testing.T) {
	if e := NewAgentProgressEvent("q", "a", "m", -0.5); e.Fraction != 0 {
		t.Errorf("expected clamp to 0, got %f", e.Fraction)
	}
	if e := NewAgentProgressEvent("q", "a", "m", 1.5); e.Fraction != 1 {
		t.Errorf("expected clamp to 1, got %f", e.Fraction)
	}
}
