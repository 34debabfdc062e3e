package hostenv

import "testing"

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestVar(t *testing.T) {
	a := NewWithLookup(mapLookup(map[string]string{"A": "alpha", "EMPTY": ""}))

	if got := a.Var("A"); got == nil || *got != "alpha" {
		t.Errorf("Var(A) = %v, want alpha", got)
	}
	if got := a.Var("EMPTY"); got == nil || *got != "" {
		t.Errorf("Var(EMPTY) = %v, want empty string", got)
	}
	if got := a.Var("NONEXISTENT_KEY_X"); got != nil {
		t.Errorf("Var(NONEXISTENT_KEY_X) = %q, want nil", *got)
	}
}

func TestVar_OSEnvironment(t *testing.T) {
	t.Setenv("TRAINDECK_HOSTENV_TEST", "value")
	a := New()
	if got := a.Var("TRAINDECK_HOSTENV_TEST"); got == nil || *got != "value" {
		t.Errorf("Var = %v, want value", got)
	}
	if got := a.Var("TRAINDECK_HOSTENV_TEST_NONEXISTENT_X"); got != nil {
		t.Errorf("Var = %q, want nil", *got)
	}
}

func TestVars(t *testing.T) {
	a := NewWithLookup(mapLookup(map[string]string{"A": "alpha"}))

	got := a.Vars([]string{"A", "B", "A"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (duplicates collapse)", len(got))
	}
	if v, ok := got["A"]; !ok || v == nil || *v != "alpha" {
		t.Errorf("A = %v, want alpha", v)
	}
	if v, ok := got["B"]; !ok || v != nil {
		t.Errorf("B = %v (present=%v), want present with nil value", v, ok)
	}
}

func TestVars_Empty(t *testing.T) {
	a := NewWithLookup(mapLookup(nil))
	if got := a.Vars(nil); len(got) != 0 {
		t.Errorf("Vars(nil) = %v, want empty map", got)
	}
}
