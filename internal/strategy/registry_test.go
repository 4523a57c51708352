package strategy

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterAndConstruct(t *testing.T) {
	r := NewRegistry()

	if err := r.RegisterEntry("stub_entry", func() EntryStrategy { return NewStubEntryStrategy() }); err != nil {
		t.Fatalf("RegisterEntry failed: %v", err)
	}
	if err := r.RegisterExit("stub_exit", func() ExitStrategy { return NewStubExitStrategy() }); err != nil {
		t.Fatalf("RegisterExit failed: %v", err)
	}

	entry, err := r.NewEntry("stub_entry")
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	if entry.Name() != "stub_entry" {
		t.Errorf("entry name = %q, want stub_entry", entry.Name())
	}

	exit, err := r.NewExit("stub_exit")
	if err != nil {
		t.Fatalf("NewExit failed: %v", err)
	}
	if exit.Name() != "stub_exit" {
		t.Errorf("exit name = %q, want stub_exit", exit.Name())
	}
}

func TestRegistry_UnknownNames(t *testing.T) {
	r := NewRegistry()

	if _, err := r.NewEntry("nope"); !errors.Is(err, ErrUnknownEntryStrategy) {
		t.Errorf("expected ErrUnknownEntryStrategy, got %v", err)
	}
	if _, err := r.NewExit("nope"); !errors.Is(err, ErrUnknownExitStrategy) {
		t.Errorf("expected ErrUnknownExitStrategy, got %v", err)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterEntry("e", func() EntryStrategy { return NewStubEntryStrategy() })

	err := r.RegisterEntry("e", func() EntryStrategy { return NewStubEntryStrategy() })
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

// statefulEntry carries per-instance state so sharing between two
// constructions is observable. Pointer comparison would not do: Go may
// give zero-size values like the stubs a common address.
type statefulEntry struct {
	StubEntryStrategy
	evals int
}

func TestRegistry_FreshInstancePerCall(t *testing.T) {
	r := NewRegistry()
	calls := 0
	_ = r.RegisterEntry("e", func() EntryStrategy { calls++; return &statefulEntry{} })

	a, _ := r.NewEntry("e")
	b, _ := r.NewEntry("e")
	if calls != 2 {
		t.Fatalf("constructor calls = %d, want 2", calls)
	}
	a.(*statefulEntry).evals++
	if b.(*statefulEntry).evals != 0 {
		t.Error("instances share state across constructions")
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterEntry("zeta", func() EntryStrategy { return NewStubEntryStrategy() })
	_ = r.RegisterEntry("alpha", func() EntryStrategy { return NewStubEntryStrategy() })

	names := r.EntryNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("EntryNames = %v, want [alpha zeta]", names)
	}
}
