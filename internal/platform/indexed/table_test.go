package indexed

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	bucket string
	name   string
}

func newTestTable() *Table[string, row] {
	return New[string, row](strings.Compare, time.Second)
}

func TestInsertIndexed_VisibleUnderKey(t *testing.T) {
	table := newTestTable()

	for _, name := range []string{"a", "b", "c"} {
		id := table.NextID()
		ok, err := table.InsertIndexed(id, "x", func() row { return row{bucket: "x", name: name} }, nil)
		require.NoError(t, err)
		require.True(t, ok)
	}

	rows, err := table.GetIndexed("x")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].name)
	assert.Equal(t, "c", rows[2].name)

	missing, err := table.GetIndexed("y")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestInsertIndexed_RowCheckRejects(t *testing.T) {
	table := newTestTable()
	sameName := func(name string) RowCheck[row] {
		return func(existing row) bool { return existing.name != name }
	}

	ok, err := table.InsertIndexed(table.NextID(), "x", func() row { return row{"x", "a"} }, sameName("a"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = table.InsertIndexed(table.NextID(), "x", func() row { return row{"x", "a"} }, sameName("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	// same name under another key is fine
	ok, err = table.InsertIndexed(table.NextID(), "y", func() row { return row{"y", "a"} }, sameName("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 2, table.Len())
}

func TestInsertIndexed_ConcurrentNoLostUpdates(t *testing.T) {
	table := newTestTable()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := table.NextID()
			ok, err := table.InsertIndexed(id, "hot", func() row { return row{bucket: "hot"} }, func(row) bool { return true })
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	rows, err := table.GetIndexed("hot")
	require.NoError(t, err)
	assert.Len(t, rows, n)
}

func TestInsertIndexed_ConcurrentDuplicateSingleWinner(t *testing.T) {
	table := newTestTable()
	const n = 50
	check := func(existing row) bool { return existing.name != "dup" }

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := table.InsertIndexed(table.NextID(), "k", func() row { return row{"k", "dup"} }, check)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	rows, err := table.GetIndexed("k")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUniqueConstraint(t *testing.T) {
	table := newTestTable()
	var names Unique[string]

	ok := table.Insert(table.NextID(), func() row { return row{name: "cash"} }, names.Check("cash"))
	assert.True(t, ok)
	ok = table.Insert(table.NextID(), func() row { return row{name: "cash"} }, names.Check("cash"))
	assert.False(t, ok)

	// a rejected row check releases the claim
	id := table.NextID()
	ok, err := table.InsertIndexed(id, "x", func() row { return row{"x", "card"} }, func(row) bool { return true }, names.Check("card"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = table.InsertIndexed(table.NextID(), "x", func() row { return row{"x", "bank"} }, func(row) bool { return false }, names.Check("bank"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, held := names.Owner("bank")
	assert.False(t, held)

	owner, held := names.Owner("card")
	assert.True(t, held)
	assert.Equal(t, id, owner)
}

func TestTimeoutOnMissingPrimaryRow(t *testing.T) {
	table := New[string, row](strings.Compare, 20*time.Millisecond)

	// register an id in the index only, as a writer stalled between the CAS and the row store would
	stale := table.index.Load()
	table.index.Store(stale.Set("x", newIDSet().Set(42, struct{}{})))

	_, err := table.GetIndexed("x")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrIllegalConcurrentState)
	assert.True(t, apperrors.IsFatal(err))

	_, err = table.InsertIndexed(table.NextID(), "x", func() row { return row{} }, func(row) bool { return true })
	assert.ErrorIs(t, err, apperrors.ErrIllegalConcurrentState)
}

func TestTimeoutOnEndlessContention(t *testing.T) {
	table := New[string, row](strings.Compare, 20*time.Millisecond)
	var names Unique[string]

	ok, err := table.InsertIndexed(table.NextID(), "x", func() row { return row{"x", "seed"} }, nil)
	require.NoError(t, err)
	require.True(t, ok)

	// every validation lets another writer land under the same key first, so the CAS never wins
	var competing int
	contend := func(existing row) bool {
		competing++
		ok, err := table.InsertIndexed(table.NextID(), "x", func() row { return row{"x", "rival"} }, nil)
		require.NoError(t, err)
		require.True(t, ok)
		return true
	}

	id := table.NextID()
	ok, err = table.InsertIndexed(id, "x", func() row { return row{"x", "loser"} }, contend, names.Check("loser"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrIndexTimeout)
	assert.True(t, apperrors.IsFatal(err))
	assert.Greater(t, competing, 1)

	_, held := names.Owner("loser")
	assert.False(t, held)
	_, stored := table.Get(id)
	assert.False(t, stored)

	rows, err := table.GetIndexed("x")
	require.NoError(t, err)
	assert.Len(t, rows, competing+1)
	for _, r := range rows {
		assert.NotEqual(t, "loser", r.name)
	}

	// the released value is free for the next row
	assert.True(t, table.Insert(table.NextID(), func() row { return row{name: "loser"} }, names.Check("loser")))
}

func TestScanDescendingAndRemove(t *testing.T) {
	table := newTestTable()
	ids := map[string]int64{}
	for _, key := range []string{"2020", "2022", "2021"} {
		id := table.NextID()
		ids[key] = id
		_, err := table.InsertIndexed(id, key, func() row { return row{bucket: key} }, nil)
		require.NoError(t, err)
	}

	var seen []string
	err := table.ScanDescending(func(key string, rows []row) bool {
		seen = append(seen, key)
		return key != "2021"
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2022", "2021"}, seen)

	require.NoError(t, table.Remove(ids["2022"], "2022"))
	assert.Equal(t, []string{"2020", "2021"}, table.Keys())
	_, ok := table.Get(ids["2022"])
	assert.False(t, ok)

	table.Clear()
	assert.Empty(t, table.Keys())
	assert.Zero(t, table.Len())
}
