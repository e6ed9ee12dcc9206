package framewire

import "testing"

func TestTypeRegistryFirstIDIs1000(t *testing.T) {
	r := NewTypeRegistry()
	id := r.Register("widget")
	if id != 1000 {
		t.Fatalf("first Register() = %d, want 1000", id)
	}
}

func TestTypeRegistryIdempotent(t *testing.T) {
	r := NewTypeRegistry()
	a := r.Register("widget")
	b := r.Register("widget")
	if a != b {
		t.Fatalf("re-registering the same name should return the same id: %d != %d", a, b)
	}
	c := r.Register("gadget")
	if c != a+1 {
		t.Fatalf("a new name should get the next monotonic id: got %d, want %d", c, a+1)
	}
}

func TestTypeRegistryLookups(t *testing.T) {
	r := NewTypeRegistry()
	id := r.Register("widget")
	name, ok := r.NameOf(id)
	if !ok || name != "widget" {
		t.Fatalf("NameOf(%d) = %q, %v, want \"widget\", true", id, name, ok)
	}
	gotID, ok := r.IDOf("widget")
	if !ok || gotID != id {
		t.Fatalf("IDOf(\"widget\") = %d, %v, want %d, true", gotID, ok, id)
	}
	if _, ok := r.NameOf(999999); ok {
		t.Fatal("NameOf should report absent for an id that was never registered")
	}
}

func TestDefaultTypeRegistrySingleton(t *testing.T) {
	a := DefaultTypeRegistry()
	b := DefaultTypeRegistry()
	if a != b {
		t.Fatal("DefaultTypeRegistry must return the same instance every time")
	}
}

func TestLoggerRegistryFallsBackToDefault(t *testing.T) {
	if fn := LookupLogf("never-registered"); fn == nil {
		t.Fatal("LookupLogf must fall back to the package default, never nil")
	}
	called := false
	RegisterLogf("custom", func(lvl LogLevel, f string, args ...interface{}) { called = true })
	LookupLogf("custom")(INFO, "hi")
	if !called {
		t.Fatal("RegisterLogf/LookupLogf should route to the registered hook")
	}
}
