package progress

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/raysh454/sift/internal/model"
)

func TestHub_EmitWithoutListenersIsNoop(t *testing.T) {
	t.Parallel()
	h := NewHub(0)
	if err := h.Emit("S1", model.ProgressEvent{Type: model.EventToolProgress}); err != nil {
		t.Fatalf("emit with zero listeners: %v", err)
	}
}

func TestHub_DeliversOnlyToMatchingScan(t *testing.T) {
	t.Parallel()
	h := NewHub(4)
	s1, cancel1 := h.Subscribe("S1")
	defer cancel1()
	s2, cancel2 := h.Subscribe("S2")
	defer cancel2()

	_ = h.Emit("S1", model.ProgressEvent{Type: model.EventToolProgress, ToolName: "maigret"})

	select {
	case ev := <-s1:
		if ev.ScanID != "S1" || ev.ToolName != "maigret" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected event on S1")
	}
	select {
	case ev := <-s2:
		t.Fatalf("S2 must not see S1 events, got %+v", ev)
	default:
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ch, cancel := h.Subscribe("S1")
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := h.Emit("S1", model.ProgressEvent{Message: fmt.Sprint(i)}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if got := h.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped, got %d", got)
	}
	if ev := <-ch; ev.Message != "0" {
		t.Errorf("expected first event kept, got %q", ev.Message)
	}
}

func TestHub_CancelClosesAndUnsubscribes(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ch, cancel := h.Subscribe("S1")
	if h.Subscribers("S1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if h.Subscribers("S1") != 0 {
		t.Errorf("expected subscriber removed")
	}
	if err := h.Emit("S1", model.ProgressEvent{}); err != nil {
		t.Errorf("emit after cancel: %v", err)
	}
}

func TestHub_ConcurrentEmitters(t *testing.T) {
	t.Parallel()
	const n = 50
	h := NewHub(n)
	ch, cancel := h.Subscribe("S1")
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Emit("S1", model.ProgressEvent{ToolName: fmt.Sprintf("tool-%d", i)})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		ev := <-ch
		if ev.ScanID != "S1" {
			t.Fatalf("event lost its scan id: %+v", ev)
		}
		seen[ev.ToolName] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct events, got %d", n, len(seen))
	}
}

func TestHub_EmitCopiesResults(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ch, cancel := h.Subscribe("S1")
	defer cancel()

	results := []model.ToolResult{model.Completed("a", 1, nil)}
	_ = h.Emit("S1", model.ProgressEvent{Type: model.EventScanComplete, Results: results})
	results[0].Tool = "mutated"

	ev := <-ch
	if ev.Results[0].Tool != "a" {
		t.Errorf("listener saw emitter mutation: %q", ev.Results[0].Tool)
	}
}

func TestHub_Close(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ch, _ := h.Subscribe("S1")
	h.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed by hub Close")
	}
	if err := h.Emit("S1", model.ProgressEvent{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	late, _ := h.Subscribe("S2")
	if _, ok := <-late; ok {
		t.Error("subscribe after close should yield a closed channel")
	}
}
