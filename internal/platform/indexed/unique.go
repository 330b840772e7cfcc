package indexed

import "sync"

// Constraint is a side-effecting uniqueness check claimed before a row is
// inserted and released if the insertion is rejected afterwards.
type Constraint interface {
	Claim(id int64) bool
	Release(id int64)
}

// Unique enforces that a derived value belongs to at most one row.
type Unique[V comparable] struct {
	owners sync.Map // V -> int64
}

// Check returns the constraint claiming v for the inserted row.
func (u *Unique[V]) Check(v V) Constraint {
	return uniqueClaim[V]{owners: &u.owners, value: v}
}

// Owner returns the id of the row holding v.
func (u *Unique[V]) Owner(v V) (int64, bool) {
	id, ok := u.owners.Load(v)
	if !ok {
		return 0, false
	}
	return id.(int64), true
}

// Clear frees every value. Not safe to run concurrently with claims.
func (u *Unique[V]) Clear() {
	u.owners.Clear()
}

type uniqueClaim[V comparable] struct {
	owners *sync.Map
	value  V
}

func (c uniqueClaim[V]) Claim(id int64) bool {
	actual, loaded := c.owners.LoadOrStore(c.value, id)
	return !loaded || actual.(int64) == id
}

func (c uniqueClaim[V]) Release(id int64) {
	c.owners.CompareAndDelete(c.value, id)
}

// claimAll claims constraints in order, releasing the ones already held when one fails.
func claimAll(id int64, constraints []Constraint) ([]Constraint, bool) {
	for i, c := range constraints {
		if !c.Claim(id) {
			releaseAll(id, constraints[:i])
			return nil, false
		}
	}
	return constraints, true
}

func releaseAll(id int64, claimed []Constraint) {
	for _, c := range claimed {
		c.Release(id)
	}
}
