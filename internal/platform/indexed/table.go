// Package indexed provides a lock-free in-memory table with a non-unique
// secondary index and composable uniqueness constraints.
//
// Rows are kept in a concurrent primary map keyed by a monotonic identity.
// The secondary index is a persistent sorted map (key -> set of ids) published
// through a single atomic pointer: writers read the current snapshot, derive a
// candidate, and compare-and-swap it in, retrying on contention until a
// wall-clock deadline. A timeout is reported as apperrors.ErrIndexTimeout and
// must be treated as fatal by callers.
//
// An indexed row becomes visible in the index immediately before it becomes
// visible in the primary map. Readers that resolve ids from the index wait for
// the primary row up to the same timeout and fail with
// apperrors.ErrIllegalConcurrentState if it never shows up.
package indexed

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/benbjohnson/immutable"
)

// DefaultTimeout bounds CAS retry loops and primary-row waits.
const DefaultTimeout = 5 * time.Second

// RowCheck is run against every row already registered under the index key a
// new row is inserted under. Returning false rejects the insertion.
type RowCheck[R any] func(existing R) bool

type idSet = *immutable.SortedMap[int64, struct{}]

// Table is a lock-free table of rows of type R, optionally indexed by keys of type K.
type Table[K, R any] struct {
	rows    sync.Map // int64 -> R
	index   atomic.Pointer[immutable.SortedMap[K, idSet]]
	keys    immutable.Comparer[K]
	ids     atomic.Int64
	timeout time.Duration
}

// New creates a table whose index is ordered by compare. A non-positive
// timeout selects DefaultTimeout.
func New[K, R any](compare func(a, b K) int, timeout time.Duration) *Table[K, R] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Table[K, R]{
		keys:    comparerFunc[K](compare),
		timeout: timeout,
	}
	t.index.Store(immutable.NewSortedMap[K, idSet](t.keys))
	return t
}

// NextID returns a fresh identity.
func (t *Table[K, R]) NextID() int64 {
	return t.ids.Add(1)
}

// Insert stores a row that is not registered in the secondary index.
// It returns false if one of the uniqueness constraints rejected it.
func (t *Table[K, R]) Insert(id int64, factory func() R, constraints ...Constraint) bool {
	if _, ok := claimAll(id, constraints); !ok {
		return false
	}
	t.rows.Store(id, factory())
	return true
}

// InsertIndexed stores a row and registers it under key.
//
// Uniqueness constraints are claimed first. Then the index is updated with a
// CAS retry loop; if check is non-nil it is run against every row already under
// key, each existing row being validated at most once across retries.
// It returns (false, nil) when a constraint or the row check rejects the row,
// and a non-nil error only when a store invariant is broken.
func (t *Table[K, R]) InsertIndexed(id int64, key K, factory func() R, check RowCheck[R], constraints ...Constraint) (bool, error) {
	claimed, ok := claimAll(id, constraints)
	if !ok {
		return false, nil
	}
	row := factory()
	deadline := time.Now().Add(t.timeout)
	validated := make(map[int64]struct{})

	for {
		stale := t.index.Load()
		members, found := stale.Get(key)
		if !found {
			members = newIDSet()
		}

		if check != nil {
			itr := members.Iterator()
			for !itr.Done() {
				existingID, _, _ := itr.Next()
				if _, seen := validated[existingID]; seen {
					continue
				}
				existing, err := t.await(existingID, deadline)
				if err != nil {
					releaseAll(id, claimed)
					return false, err
				}
				if !check(existing) {
					releaseAll(id, claimed)
					return false, nil
				}
				validated[existingID] = struct{}{}
			}
		}

		fresh := stale.Set(key, members.Set(id, struct{}{}))
		if t.index.CompareAndSwap(stale, fresh) {
			t.rows.Store(id, row)
			return true, nil
		}

		if time.Now().After(deadline) {
			releaseAll(id, claimed)
			return false, fmt.Errorf("%w: inserting row %d under key %v", apperrors.ErrIndexTimeout, id, key)
		}
		runtime.Gosched()
	}
}

// Get returns the row stored under id.
func (t *Table[K, R]) Get(id int64) (R, bool) {
	v, ok := t.rows.Load(id)
	if !ok {
		var zero R
		return zero, false
	}
	return v.(R), true
}

// GetIndexed returns the rows registered under key in insertion order.
func (t *Table[K, R]) GetIndexed(key K) ([]R, error) {
	members, found := t.index.Load().Get(key)
	if !found {
		return nil, nil
	}
	return t.resolve(members, time.Now().Add(t.timeout))
}

// Keys returns a snapshot of the index keys in ascending order.
func (t *Table[K, R]) Keys() []K {
	snapshot := t.index.Load()
	keys := make([]K, 0, snapshot.Len())
	itr := snapshot.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		keys = append(keys, k)
	}
	return keys
}

// ScanDescending calls fn for each index key from the greatest to the smallest
// with the rows registered under it, until fn returns false. All keys are read
// from a single index snapshot.
func (t *Table[K, R]) ScanDescending(fn func(key K, rows []R) bool) error {
	snapshot := t.index.Load()
	type bucket struct {
		key     K
		members idSet
	}
	buckets := make([]bucket, 0, snapshot.Len())
	itr := snapshot.Iterator()
	for !itr.Done() {
		k, members, _ := itr.Next()
		buckets = append(buckets, bucket{key: k, members: members})
	}

	deadline := time.Now().Add(t.timeout)
	for i := len(buckets) - 1; i >= 0; i-- {
		rows, err := t.resolve(buckets[i].members, deadline)
		if err != nil {
			return err
		}
		if !fn(buckets[i].key, rows) {
			return nil
		}
	}
	return nil
}

// Remove unregisters id from key and drops the row. Removing an unknown id is a no-op.
func (t *Table[K, R]) Remove(id int64, key K) error {
	deadline := time.Now().Add(t.timeout)
	for {
		stale := t.index.Load()
		members, found := stale.Get(key)
		if !found {
			break
		}
		if _, present := members.Get(id); !present {
			break
		}
		members = members.Delete(id)
		var fresh *immutable.SortedMap[K, idSet]
		if members.Len() == 0 {
			fresh = stale.Delete(key)
		} else {
			fresh = stale.Set(key, members)
		}
		if t.index.CompareAndSwap(stale, fresh) {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: removing row %d from key %v", apperrors.ErrIndexTimeout, id, key)
		}
		runtime.Gosched()
	}
	t.rows.Delete(id)
	return nil
}

// Len returns the number of rows in the primary map.
func (t *Table[K, R]) Len() int {
	n := 0
	t.rows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear drops every row and index entry. It must not run concurrently with
// any other operation on the table.
func (t *Table[K, R]) Clear() {
	t.index.Store(immutable.NewSortedMap[K, idSet](t.keys))
	t.rows.Clear()
}

func (t *Table[K, R]) resolve(members idSet, deadline time.Time) ([]R, error) {
	rows := make([]R, 0, members.Len())
	itr := members.Iterator()
	for !itr.Done() {
		id, _, _ := itr.Next()
		row, err := t.await(id, deadline)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// await waits for an indexed id to show up in the primary map.
func (t *Table[K, R]) await(id int64, deadline time.Time) (R, error) {
	for {
		if row, ok := t.Get(id); ok {
			return row, nil
		}
		if time.Now().After(deadline) {
			var zero R
			return zero, fmt.Errorf("%w: row %d is indexed but absent", apperrors.ErrIllegalConcurrentState, id)
		}
		runtime.Gosched()
	}
}

func newIDSet() idSet {
	return immutable.NewSortedMap[int64, struct{}](int64Comparer{})
}

type comparerFunc[K any] func(a, b K) int

func (f comparerFunc[K]) Compare(a, b K) int { return f(a, b) }

type int64Comparer struct{}

func (int64Comparer) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
