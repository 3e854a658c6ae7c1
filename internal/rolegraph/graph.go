// Package rolegraph holds roles and their incompatible/required relations
// as an arena of roles indexed by ID, and resolves transitive requirements.
package rolegraph

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a role id is not part of the graph.
var ErrNotFound = errors.New("role not found")

// Graph is an immutable snapshot of the role catalogue.
type Graph struct {
	roles []model.Role
	index map[uuid.UUID]int
}

// New builds a graph from roles. The input slice is copied.
func New(roles []model.Role) *Graph {
	g := &Graph{
		roles: make([]model.Role, len(roles)),
		index: make(map[uuid.UUID]int, len(roles)),
	}
	copy(g.roles, roles)
	for i, r := range g.roles {
		g.index[r.ID] = i
	}
	return g
}

// Len returns the number of roles.
func (g *Graph) Len() int { return len(g.roles) }

// Get returns the role with the given id.
func (g *Graph) Get(id uuid.UUID) (model.Role, error) {
	i, ok := g.index[id]
	if !ok {
		return model.Role{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return g.roles[i], nil
}

// Has reports whether id is a known role.
func (g *Graph) Has(id uuid.UUID) bool {
	_, ok := g.index[id]
	return ok
}

// FindByIDs returns roles in the order of ids. Duplicate ids are collapsed.
func (g *Graph) FindByIDs(ids []uuid.UUID) ([]model.Role, error) {
	out := make([]model.Role, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r, err := g.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// All returns every role in insertion order.
func (g *Graph) All() []model.Role {
	out := make([]model.Role, len(g.roles))
	copy(out, g.roles)
	return out
}

// WithEdges returns a copy of the graph in which role id has the given
// incompatible and required edges. Incompatibility is symmetric, so the
// reverse edges on the other roles are rewritten too. Used to evaluate an
// edit before saving it.
func (g *Graph) WithEdges(id uuid.UUID, incompatible, required []uuid.UUID) (*Graph, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := New(g.roles)
	incompatibleSet := make(map[uuid.UUID]struct{}, len(incompatible))
	for _, rid := range incompatible {
		incompatibleSet[rid] = struct{}{}
	}
	for j := range next.roles {
		if j == i {
			continue
		}
		r := &next.roles[j]
		kept := make([]uuid.UUID, 0, len(r.IncompatibleRoles))
		for _, rid := range r.IncompatibleRoles {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		if _, ok := incompatibleSet[r.ID]; ok {
			kept = append(kept, id)
		}
		r.IncompatibleRoles = kept
	}
	r := &next.roles[i]
	r.IncompatibleRoles = append([]uuid.UUID(nil), incompatible...)
	r.RequiredRoles = append([]uuid.UUID(nil), required...)
	return next, nil
}

// With returns a copy of the graph with r added or replaced.
func (g *Graph) With(r model.Role) *Graph {
	next := New(g.roles)
	if i, ok := next.index[r.ID]; ok {
		next.roles[i] = r
		return next
	}
	next.index[r.ID] = len(next.roles)
	next.roles = append(next.roles, r)
	return next
}
