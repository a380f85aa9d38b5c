package fault

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGuardNoPanic(t *testing.T) {
	called := false
	ran := false
	f := Guard("update", func(*Fault) { called = true }, func() { ran = true })

	if f != nil {
		t.Errorf("Expected nil fault, got %v", f)
	}
	if !ran || called {
		t.Errorf("Expected fn to run without reporting, ran=%v reported=%v", ran, called)
	}
}

func TestGuardRecovers(t *testing.T) {
	var got *Fault
	f := Guard("render", func(x *Fault) { got = x }, func() { panic("boom") })

	if f == nil || got != f {
		t.Fatalf("Expected the returned fault to be reported, got %v / %v", f, got)
	}
	if f.Source != "render" || f.Value != "boom" {
		t.Errorf("Unexpected fault contents: %+v", f)
	}
	if len(f.Stack) == 0 {
		t.Error("Expected a stack trace")
	}
	if f.Error() != "render: panic: boom" {
		t.Errorf("Unexpected message %q", f.Error())
	}
}

func TestFaultUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	f := Guard("action", nil, func() { panic(sentinel) })
	if !errors.Is(f, sentinel) {
		t.Error("Expected fault to unwrap to the panic error")
	}
}

func TestLogHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := LogHandler(zap.New(core))

	Guard("fixed_update", h, func() { panic("bad step") })

	entries := logs.FilterMessage("callback panicked").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["source"] != "fixed_update" {
		t.Errorf("Expected source field, got %v", entries[0].ContextMap())
	}
}
