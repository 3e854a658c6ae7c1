// Package eligibility decides whether a role or subevent assignment is
// admissible: no incompatible roles after transitive expansion, capacity
// left, registration window open.
//
// Administrative overrides skip the window and capacity checks. They never
// skip incompatibility: those conflicts are structural.
package eligibility

import (
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/rolegraph"
	"github.com/google/uuid"
)

// Candidate is a proposed role assignment for one user.
type Candidate struct {
	RoleIDs []uuid.UUID

	// Held are roles the user already has; they do not consume capacity
	// and are not subject to the registration window again.
	Held []uuid.UUID

	// Holders is the current number of users holding each role.
	Holders map[uuid.UUID]int

	Now           time.Time
	AdminOverride bool
}

// SubeventCandidate is a proposed subevent assignment for one user.
type SubeventCandidate struct {
	Subevents     []model.Subevent
	Held          []uuid.UUID
	Holders       map[uuid.UUID]int
	Now           time.Time
	AdminOverride bool
}

// Validator checks assignments against a role graph snapshot.
type Validator struct {
	graph *rolegraph.Graph
}

// New returns a Validator over g.
func New(g *rolegraph.Graph) *Validator {
	return &Validator{graph: g}
}

// ValidateRoles checks c and returns the effective role set (candidate
// roles plus everything they transitively require) when admissible.
func (v *Validator) ValidateRoles(c Candidate) ([]uuid.UUID, error) {
	effective, err := v.graph.EffectiveSet(c.RoleIDs)
	if err != nil {
		return nil, err
	}
	if err := v.checkIncompatible(effective); err != nil {
		return nil, err
	}
	if c.AdminOverride {
		return effective, nil
	}

	held := idSet(c.Held)
	for _, id := range effective {
		if _, ok := held[id]; ok {
			continue
		}
		r, _ := v.graph.Get(id)
		if !r.Registerable || !windowOpen(c.Now, r.RegisterableFrom, r.RegisterableTo) {
			return nil, &ValidationError{Kind: KindRegistrationClosed, SubjectID: r.ID, Subject: r.Name}
		}
		if r.Capacity != nil && c.Holders[id]+1 > *r.Capacity {
			return nil, &ValidationError{Kind: KindCapacityExceeded, SubjectID: r.ID, Subject: r.Name}
		}
	}
	return effective, nil
}

// ValidateSubevents applies the window and capacity checks to subevents.
func (v *Validator) ValidateSubevents(c SubeventCandidate) error {
	if c.AdminOverride {
		return nil
	}
	held := idSet(c.Held)
	for _, s := range c.Subevents {
		if _, ok := held[s.ID]; ok {
			continue
		}
		if !windowOpen(c.Now, s.RegisterableFrom, s.RegisterableTo) {
			return &ValidationError{Kind: KindRegistrationClosed, SubjectID: s.ID, Subject: s.Name}
		}
		if s.Capacity != nil && c.Holders[s.ID]+1 > *s.Capacity {
			return &ValidationError{Kind: KindCapacityExceeded, SubjectID: s.ID, Subject: s.Name}
		}
	}
	return nil
}

// ValidateRoleEdit checks a proposed change of a role's incompatible and
// required edges. It fails with RequiredCollision when the two lists
// overlap, when the role references itself, or when after the edit any
// role transitively requires a role it is incompatible with.
func (v *Validator) ValidateRoleEdit(roleID uuid.UUID, incompatible, required []uuid.UUID) error {
	subject, err := v.graph.Get(roleID)
	if err != nil {
		return err
	}
	if _, err := v.graph.FindByIDs(incompatible); err != nil {
		return err
	}
	if _, err := v.graph.FindByIDs(required); err != nil {
		return err
	}

	reqSet := idSet(required)
	var overlap []string
	for _, id := range incompatible {
		if id == roleID {
			return &ValidationError{Kind: KindRequiredCollision, SubjectID: subject.ID, Subject: subject.Name, Conflicting: []string{subject.Name}}
		}
		if _, ok := reqSet[id]; ok {
			r, _ := v.graph.Get(id)
			overlap = append(overlap, r.Name)
		}
	}
	if _, ok := reqSet[roleID]; ok {
		return &ValidationError{Kind: KindRequiredCollision, SubjectID: subject.ID, Subject: subject.Name, Conflicting: []string{subject.Name}}
	}
	if len(overlap) > 0 {
		return &ValidationError{Kind: KindRequiredCollision, SubjectID: subject.ID, Subject: subject.Name, Conflicting: overlap}
	}

	edited, err := v.graph.WithEdges(roleID, incompatible, required)
	if err != nil {
		return err
	}
	for _, r := range edited.All() {
		closure, err := edited.TransitiveRequiredIDs(r.ID)
		if err != nil {
			return err
		}
		bad := idSet(r.IncompatibleRoles)
		var conflicting []string
		for _, id := range closure {
			if _, ok := bad[id]; ok {
				cr, _ := edited.Get(id)
				conflicting = append(conflicting, cr.Name)
			}
		}
		if len(conflicting) > 0 {
			return &ValidationError{Kind: KindRequiredCollision, SubjectID: r.ID, Subject: r.Name, Conflicting: conflicting}
		}
	}
	return nil
}

// checkIncompatible fails on the first role in the effective set whose
// incompatible roles intersect the set.
func (v *Validator) checkIncompatible(effective []uuid.UUID) error {
	in := idSet(effective)
	for _, id := range effective {
		r, _ := v.graph.Get(id)
		var conflicting []string
		for _, other := range r.IncompatibleRoles {
			if _, ok := in[other]; !ok {
				continue
			}
			o, err := v.graph.Get(other)
			if err != nil {
				continue
			}
			conflicting = append(conflicting, o.Name)
		}
		if len(conflicting) > 0 {
			return &ValidationError{Kind: KindIncompatibleRoles, SubjectID: r.ID, Subject: r.Name, Conflicting: conflicting}
		}
	}
	return nil
}

// windowOpen treats a nil bound as unbounded on that side. Both bounds
// are inclusive.
func windowOpen(now time.Time, from, to *time.Time) bool {
	if from != nil && now.Before(*from) {
		return false
	}
	if to != nil && now.After(*to) {
		return false
	}
	return true
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
