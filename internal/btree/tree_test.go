package btree

import (
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
)

// maxIndexKey is a sentinel larger than any generated key, standing in
// for "no upper bound" on a RangeSearch over the full keyspace.
const maxIndexKey = "￿￿￿￿￿￿￿￿￿￿"

func newTestTree(t *testing.T, capacity int) *Tree {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "imdbengine-btree-*")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	pool := buffer.NewPool(zap.NewNop(), capacity)
	require.NoError(t, pool.RegisterFile("index", f, 0))
	single := buffer.NewSinglePool(pool, "index")

	tree, err := Open(single, zap.NewNop(), 4)
	require.NoError(t, err)
	return tree
}

func TestTree_InsertAndSearch(t *testing.T) {
	tree := newTestTree(t, 32)

	require.NoError(t, tree.Insert("tt0001", storage.RID{PageID: 1, SlotID: 0}))
	require.NoError(t, tree.Insert("tt0001", storage.RID{PageID: 1, SlotID: 1}))
	require.NoError(t, tree.Insert("tt0002", storage.RID{PageID: 2, SlotID: 0}))

	it, err := tree.Search("tt0001")
	require.NoError(t, err)
	var got []storage.RID
	for {
		rid, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, rid)
	}
	assert.ElementsMatch(t, []storage.RID{{PageID: 1, SlotID: 0}, {PageID: 1, SlotID: 1}}, got)

	it, err = tree.Search("missing")
	require.NoError(t, err)
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestTree_SplitsAcrossManyKeys(t *testing.T) {
	tree := newTestTree(t, 64)

	const n = 200
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%05d", i)
		require.NoError(t, tree.Insert(key, storage.RID{PageID: storage.PageID(i), SlotID: 0}))
	}

	it, err := tree.RangeSearch("tt00000", "tt99999")
	require.NoError(t, err)
	var rids []storage.RID
	for {
		rid, ok := it.Next()
		if !ok {
			break
		}
		rids = append(rids, rid)
	}
	assert.Len(t, rids, n)
}

func TestTree_RangeSearch_LoGreaterThanHiYieldsNothing(t *testing.T) {
	tree := newTestTree(t, 32)
	require.NoError(t, tree.Insert("b", storage.RID{PageID: 1}))

	it, err := tree.RangeSearch("z", "a")
	require.NoError(t, err)
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestTree_RangeSearch_PointLookupWhenLoEqualsHi(t *testing.T) {
	tree := newTestTree(t, 32)
	require.NoError(t, tree.Insert("a", storage.RID{PageID: 1}))
	require.NoError(t, tree.Insert("b", storage.RID{PageID: 2}))

	it, err := tree.RangeSearch("a", "a")
	require.NoError(t, err)
	rid, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, storage.PageID(1), rid.PageID)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestTree_BulkLoadEnumeratesInOrder(t *testing.T) {
	tree := newTestTree(t, 64)
	tree.SetBulkLoad(true)

	keys := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		keys = append(keys, fmt.Sprintf("tt%05d", i))
	}
	sort.Strings(keys)
	for i, k := range keys {
		require.NoError(t, tree.Insert(k, storage.RID{PageID: storage.PageID(i)}))
	}
	require.NoError(t, tree.Flush())

	it, err := tree.RangeSearch(keys[0], keys[len(keys)-1])
	require.NoError(t, err)
	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, len(keys), count)
}

func TestTree_BufferPressureAcrossThousandKeysPreservesEveryRID(t *testing.T) {
	tree := newTestTree(t, 4)

	faker := gofakeit.New(11)
	const n = 1000
	seen := make(map[string]bool, n)
	inserted := make([]storage.RID, 0, n)
	for i := 0; i < n; i++ {
		var key string
		for {
			key = fmt.Sprintf("%s-%05d", faker.LetterN(6), i)
			if !seen[key] {
				seen[key] = true
				break
			}
		}
		rid := storage.RID{PageID: storage.PageID(i), SlotID: 0}
		require.NoError(t, tree.Insert(key, rid))
		inserted = append(inserted, rid)
	}

	it, err := tree.RangeSearch("", maxIndexKey)
	require.NoError(t, err)
	var got []storage.RID
	for {
		rid, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, rid)
	}
	assert.ElementsMatch(t, inserted, got)
}

func TestTree_BulkLoadRejectsDecreasingKeys(t *testing.T) {
	tree := newTestTree(t, 32)
	tree.SetBulkLoad(true)

	require.NoError(t, tree.Insert("b", storage.RID{PageID: 1}))
	err := tree.Insert("a", storage.RID{PageID: 2})
	assert.ErrorIs(t, err, ErrUnsortedBulkLoad)
}
