package rolegraph

import (
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
)

func role(name string, required ...uuid.UUID) model.Role {
	return model.Role{ID: uuid.New(), Name: name, RequiredRoles: required}
}

func names(roles []model.Role) map[string]bool {
	out := make(map[string]bool, len(roles))
	for _, r := range roles {
		out[r.Name] = true
	}
	return out
}

func TestGetUnknownRole(t *testing.T) {
	g := New(nil)
	if _, err := g.Get(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := g.FindByIDs([]uuid.UUID{uuid.New()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByIDs() error = %v, want ErrNotFound", err)
	}
}

func TestFindByIDsKeepsOrderAndDedups(t *testing.T) {
	a, b := role("a"), role("b")
	g := New([]model.Role{a, b})
	got, err := g.FindByIDs([]uuid.UUID{b.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "a" {
		t.Fatalf("FindByIDs = %+v", got)
	}
}

func TestTransitiveRequiredChain(t *testing.T) {
	c := role("c")
	b := role("b", c.ID)
	a := role("a", b.ID)
	g := New([]model.Role{a, b, c})

	got, err := g.TransitiveRequired(a.ID)
	if err != nil {
		t.Fatalf("TransitiveRequired: %v", err)
	}
	n := names(got)
	if len(got) != 2 || !n["b"] || !n["c"] {
		t.Fatalf("TransitiveRequired(a) = %v, want {b, c}", n)
	}
	if n["a"] {
		t.Fatal("start role must not appear without a cycle")
	}
}

func TestTransitiveRequiredCycleTerminates(t *testing.T) {
	a := role("a")
	b := role("b", a.ID)
	c := role("c", b.ID)
	a.RequiredRoles = []uuid.UUID{c.ID}
	g := New([]model.Role{a, b, c})

	got, err := g.TransitiveRequired(a.ID)
	if err != nil {
		t.Fatalf("TransitiveRequired: %v", err)
	}
	n := names(got)
	if len(got) != 3 || !n["a"] || !n["b"] || !n["c"] {
		t.Fatalf("cycle closure = %v, want union {a, b, c}", n)
	}
}

func TestTransitiveRequiredSelfLoop(t *testing.T) {
	a := role("a")
	a.RequiredRoles = []uuid.UUID{a.ID}
	g := New([]model.Role{a})
	got, err := g.TransitiveRequired(a.ID)
	if err != nil {
		t.Fatalf("TransitiveRequired: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("self loop closure len = %d, want 1", len(got))
	}
}

func TestClosureIsIdempotent(t *testing.T) {
	d := role("d")
	c := role("c", d.ID)
	b := role("b", c.ID)
	a := role("a", b.ID, d.ID)
	g := New([]model.Role{a, b, c, d})

	first, err := g.EffectiveSet([]uuid.UUID{a.ID})
	if err != nil {
		t.Fatalf("EffectiveSet: %v", err)
	}
	second, err := g.EffectiveSet(first)
	if err != nil {
		t.Fatalf("EffectiveSet: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("second pass added roles: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("second pass reordered roles at %d", i)
		}
	}
}

func TestEffectiveSetOrderFollowsCandidates(t *testing.T) {
	b := role("b")
	a := role("a", b.ID)
	x := role("x")
	g := New([]model.Role{a, b, x})

	got, err := g.EffectiveSet([]uuid.UUID{a.ID, x.ID, a.ID})
	if err != nil {
		t.Fatalf("EffectiveSet: %v", err)
	}
	want := []uuid.UUID{a.ID, b.ID, x.ID}
	if len(got) != len(want) {
		t.Fatalf("EffectiveSet = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EffectiveSet[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEffectiveSetUnknownCandidate(t *testing.T) {
	g := New(nil)
	if _, err := g.EffectiveSet([]uuid.UUID{uuid.New()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("EffectiveSet error = %v, want ErrNotFound", err)
	}
}

func TestWithEdgesDoesNotMutateOriginal(t *testing.T) {
	a, b := role("a"), role("b")
	g := New([]model.Role{a, b})
	next, err := g.WithEdges(a.ID, nil, []uuid.UUID{b.ID})
	if err != nil {
		t.Fatalf("WithEdges: %v", err)
	}
	if ids, _ := g.TransitiveRequiredIDs(a.ID); len(ids) != 0 {
		t.Fatal("original graph was mutated")
	}
	if ids, _ := next.TransitiveRequiredIDs(a.ID); len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("edited graph closure = %v", ids)
	}
}

func TestWithEdgesKeepsIncompatibilitySymmetric(t *testing.T) {
	a, b, c := role("a"), role("b"), role("c")
	a.IncompatibleRoles = []uuid.UUID{b.ID}
	b.IncompatibleRoles = []uuid.UUID{a.ID}
	g := New([]model.Role{a, b, c})

	next, err := g.WithEdges(a.ID, []uuid.UUID{c.ID}, nil)
	if err != nil {
		t.Fatalf("WithEdges: %v", err)
	}
	nb, _ := next.Get(b.ID)
	if len(nb.IncompatibleRoles) != 0 {
		t.Fatalf("b still incompatible with a: %v", nb.IncompatibleRoles)
	}
	nc, _ := next.Get(c.ID)
	if len(nc.IncompatibleRoles) != 1 || nc.IncompatibleRoles[0] != a.ID {
		t.Fatalf("c incompatible = %v, want [a]", nc.IncompatibleRoles)
	}
}
