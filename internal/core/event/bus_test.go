package event

import (
	"testing"

	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/fault"
)

func TestPublishTyped(t *testing.T) {
	b := NewBus(nil)

	var keys []Key
	var resizes []Resize
	Subscribe(b, func(k Key) { keys = append(keys, k) })
	Subscribe(b, func(r Resize) { resizes = append(resizes, r) })

	if n := b.Publish(Key{Code: KeyRune, Rune: 'a'}); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}
	b.Publish(Resize{Width: 80, Height: 24})
	if n := b.Publish(Quit{}); n != 0 {
		t.Errorf("Expected no subscribers for Quit, got %d", n)
	}
	if n := b.Publish(nil); n != 0 {
		t.Errorf("Expected nil event to be ignored, got %d", n)
	}

	if len(keys) != 1 || keys[0].Rune != 'a' {
		t.Errorf("Unexpected keys %v", keys)
	}
	if len(resizes) != 1 || resizes[0].Width != 80 {
		t.Errorf("Unexpected resizes %v", resizes)
	}
}

func TestEmitDeliveredNextFlush(t *testing.T) {
	b := NewBus(nil)

	var got []int
	Subscribe(b, func(v int) {
		got = append(got, v)
		if v < 3 {
			Emit(b, v+1)
		}
	})

	Emit(b, 1)
	if len(got) != 0 {
		t.Fatal("Expected Emit to defer delivery")
	}

	for frame, want := range []int{1, 2, 3} {
		if n := b.Flush(); n != 1 {
			t.Errorf("Frame %d: expected 1 event flushed, got %d", frame, n)
		}
		if len(got) != frame+1 || got[frame] != want {
			t.Fatalf("Frame %d: expected %d delivered, got %v", frame, want, got)
		}
	}
	if n := b.Flush(); n != 0 {
		t.Errorf("Expected empty flush, got %d", n)
	}
}

func TestPanickingSubscriber(t *testing.T) {
	var faults []*fault.Fault
	b := NewBus(func(f *fault.Fault) { faults = append(faults, f) })

	second := false
	Subscribe(b, func(Key) { panic("bad handler") })
	Subscribe(b, func(Key) { second = true })

	b.Publish(Key{Code: KeyEnter})
	if !second {
		t.Error("Expected the second subscriber to run")
	}
	if len(faults) != 1 || faults[0].Source != "event" {
		t.Errorf("Expected one event fault, got %v", faults)
	}
}
