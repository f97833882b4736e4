package scopes

import (
	"reflect"
	"testing"
)

func TestParseAndJoin(t *testing.T) {
	parsed := Parse("  payments   transactions ")
	if !reflect.DeepEqual(parsed, []string{"payments", "transactions"}) {
		t.Fatalf("unexpected parse result: %v", parsed)
	}
	if got := Parse(""); len(got) != 0 {
		t.Fatalf("empty string parsed to %v", got)
	}
	if got := Join([]string{"identity", "income"}); got != "identity income" {
		t.Fatalf("unexpected join result: %q", got)
	}
}

func TestIntersect(t *testing.T) {
	got := Intersect(
		[]string{"payments", "user-data", "payments", "identity"},
		[]string{"user-data", "payments", "transactions"},
	)
	want := []string{"payments", "user-data"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if Intersect([]string{"identity"}, nil) != nil {
		t.Fatalf("intersect with empty set should be empty")
	}
}

func TestCatalog(t *testing.T) {
	for _, scope := range All() {
		if !IsValid(scope) {
			t.Errorf("scope %q missing from catalog", scope)
		}
		if Description(scope) == "" {
			t.Errorf("scope %q has no description", scope)
		}
	}
	if IsValid("made-up") {
		t.Fatalf("unknown scope reported valid")
	}
	for name, set := range Sets {
		for _, scope := range set {
			if !IsValid(scope) {
				t.Errorf("set %q contains unknown scope %q", name, scope)
			}
		}
	}
}
