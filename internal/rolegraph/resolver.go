package rolegraph

import (
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/google/uuid"
)

// TransitiveRequired returns every role reachable from id over required
// edges, in breadth-first discovery order. The start role is only included
// when a cycle leads back to it. Edges pointing at unknown roles are skipped.
func (g *Graph) TransitiveRequired(id uuid.UUID) ([]model.Role, error) {
	start, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	ids := g.closure(start.RequiredRoles, make(map[uuid.UUID]struct{}))
	out := make([]model.Role, 0, len(ids))
	for _, rid := range ids {
		out = append(out, g.roles[g.index[rid]])
	}
	return out, nil
}

// TransitiveRequiredIDs is TransitiveRequired returning ids only.
func (g *Graph) TransitiveRequiredIDs(id uuid.UUID) ([]uuid.UUID, error) {
	start, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	return g.closure(start.RequiredRoles, make(map[uuid.UUID]struct{})), nil
}

// EffectiveSet expands ids with their transitive requirements. Each
// candidate is followed by the roles it pulls in, in discovery order.
func (g *Graph) EffectiveSet(ids []uuid.UUID) ([]uuid.UUID, error) {
	visited := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		i, ok := g.index[id]
		if !ok {
			_, err := g.Get(id)
			return nil, err
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		out = append(out, id)
		out = append(out, g.closure(g.roles[i].RequiredRoles, visited)...)
	}
	return out, nil
}

// closure walks required edges from frontier, skipping anything already in
// visited. visited is updated in place; the returned slice holds only newly
// visited ids.
func (g *Graph) closure(frontier []uuid.UUID, visited map[uuid.UUID]struct{}) []uuid.UUID {
	var out []uuid.UUID
	queue := append([]uuid.UUID(nil), frontier...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := visited[id]; ok {
			continue
		}
		i, ok := g.index[id]
		if !ok {
			continue
		}
		visited[id] = struct{}{}
		out = append(out, id)
		queue = append(queue, g.roles[i].RequiredRoles...)
	}
	return out
}
