package nick

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain latin", "Zeuto", "zeuto"},
		{"cyrillic lookalikes", "Сrystal", "crystal"}, // leading С is Cyrillic
		{"digit lookalikes", "0liver", "oliver"},
		{"mixed digits and cyrillic", "Сryst4l", "crystal"},
		{"underscore kept", "dark_mage", "dark_mage"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolve_Exact(t *testing.T) {
	r := NewResolver([]string{"sysbot"}, []string{"jezebel", "zeuto"}, 0.7, nil)

	got, ok := r.Resolve("zeuto")
	if !ok || got != "zeuto" {
		t.Fatalf("Resolve(zeuto) = %q, %v; want exact match", got, ok)
	}
	got, ok = r.Resolve("sysbot")
	if !ok || got != "sysbot" {
		t.Fatalf("Resolve(sysbot) = %q, %v; want exact match from ignore set", got, ok)
	}
}

func TestResolve_FuzzyThreshold(t *testing.T) {
	// "jezebel" is 7 runes: 2 edits gives ratio 5/7 ≈ 0.714, just
	// above the 0.7 threshold; "greatwhite" is 10 runes: 3 edits gives
	// exactly 0.7, which must NOT resolve (strictly greater required).
	r := NewResolver(nil, []string{"jezebel", "greatwhite"}, 0.7, nil)

	got, ok := r.Resolve("jezxyel")
	if !ok || got != "jezebel" {
		t.Errorf("Resolve(jezxyel) = %q, %v; want fuzzy match jezebel at ratio 0.714", got, ok)
	}

	if got, ok := r.Resolve("greatwhxyz"); ok {
		t.Errorf("Resolve(greatwhxyz) = %q; ratio 0.70 must not pass a strict >0.7 threshold", got)
	}

	// 4 edits over 13 runes is 0.692 — below threshold.
	r2 := NewResolver(nil, []string{"wandererqueen"}, 0.7, nil)
	if got, ok := r2.Resolve("wandererqwxyz"); ok {
		t.Errorf("Resolve at ratio 0.69 = %q; want no match", got)
	}
}

func TestResolve_PicksBestCandidate(t *testing.T) {
	r := NewResolver(nil, []string{"moonlight", "moonlite"}, 0.7, nil)

	got, ok := r.Resolve("moonlighx")
	if !ok || got != "moonlight" {
		t.Errorf("Resolve(moonlighx) = %q, %v; want highest-ratio candidate moonlight", got, ok)
	}
}

func TestUpdateSets_DropsEmptyAfterNormalize(t *testing.T) {
	r := NewResolver(nil, nil, 0.7, nil)
	r.UpdateSets([]string{"  ", ""}, []string{"Zeuto", " "})

	if len(r.IgnoreNicks()) != 0 {
		t.Errorf("expected empty ignore set, got %v", r.IgnoreNicks())
	}
	if got := r.TargetNicks(); len(got) != 1 || got[0] != "zeuto" {
		t.Errorf("expected target set [zeuto], got %v", got)
	}
}

func TestAddRemoveTarget(t *testing.T) {
	r := NewResolver([]string{"sysbot"}, nil, 0.7, nil)

	if !r.AddTarget("newcomer") {
		t.Error("expected AddTarget to accept a fresh nick")
	}
	if r.AddTarget("newcomer") {
		t.Error("expected AddTarget to reject a duplicate")
	}
	if r.AddTarget("sysbot") {
		t.Error("expected AddTarget to reject a nick already on ignore")
	}
	if r.AddTarget("") {
		t.Error("expected AddTarget to reject empty nick")
	}

	r.RemoveTarget("newcomer")
	if r.IsTarget("newcomer") {
		t.Error("expected nick removed from target set")
	}

	r.AddTarget("a")
	r.AddTarget("b")
	r.ClearTargets()
	if len(r.TargetNicks()) != 0 {
		t.Errorf("expected cleared target set, got %v", r.TargetNicks())
	}
}
