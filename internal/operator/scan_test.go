package operator

import (
	"fmt"
	"os"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/storage"
)

func newTestPool(t *testing.T, capacity int) *buffer.Pool {
	t.Helper()
	return buffer.NewPool(zap.NewNop(), capacity)
}

func registerTempFile(t *testing.T, pool *buffer.Pool, name string) *buffer.SinglePool {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "imdbengine-op-*")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, pool.RegisterFile(name, f, 0))
	return buffer.NewSinglePool(pool, name)
}

func seedMovies(t *testing.T, single *buffer.SinglePool, rows [][]string) {
	t.Helper()
	codec := storage.CodecFor(storage.Movies)
	var page *storage.RowPage
	for _, r := range rows {
		if page == nil {
			p, err := single.CreatePage()
			require.NoError(t, err)
			page = storage.NewRowPage(p, storage.Movies)
		}
		if _, ok := page.InsertRow(r); !ok {
			single.MarkDirty(page.PageID())
			single.UnpinPage(page.PageID())
			p, err := single.CreatePage()
			require.NoError(t, err)
			page = storage.NewRowPage(p, storage.Movies)
			_, ok := page.InsertRow(r)
			require.True(t, ok)
		}
	}
	if page != nil {
		single.MarkDirty(page.PageID())
		single.UnpinPage(page.PageID())
	}
	require.NoError(t, single.Force())
	_ = codec
}

func TestScan_ProducesRowsInOrder(t *testing.T) {
	pool := newTestPool(t, 8)
	single := registerTempFile(t, pool, "movies")
	seedMovies(t, single, [][]string{
		{"tt0001", "A Movie"},
		{"tt0002", "B Movie"},
	})

	scan := NewScan(single, storage.Movies, nil)
	out := drain(t, scan)
	require.Len(t, out, 2)
	v, _ := out[0].Get("movieId")
	assert.Equal(t, "tt0001", v)
}

func TestScan_CrossesPageBoundary(t *testing.T) {
	pool := newTestPool(t, 8)
	single := registerTempFile(t, pool, "movies")

	codec := storage.CodecFor(storage.Movies)
	maxRows := codec.MaxRowsPerPage()
	total := maxRows*3 - 1
	rows := make([][]string, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, []string{"tt0001", "row"})
	}
	seedMovies(t, single, rows)

	scan := NewScan(single, storage.Movies, nil)
	out := drain(t, scan)
	assert.Len(t, out, total)
}

func TestScan_OneMoreRowFillsExactlyThreePages(t *testing.T) {
	pool := newTestPool(t, 8)
	single := registerTempFile(t, pool, "movies")

	faker := gofakeit.New(7)
	codec := storage.CodecFor(storage.Movies)
	maxRows := codec.MaxRowsPerPage()
	total := maxRows * 3
	rows := make([][]string, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, []string{fmt.Sprintf("tt%07d", i), faker.Sentence(3)})
	}
	seedMovies(t, single, rows)

	scan := NewScan(single, storage.Movies, nil)
	out := drain(t, scan)
	require.Len(t, out, total)
	for i, tup := range out {
		v, ok := tup.Get("movieId")
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("tt%07d", i), v)
	}

	page2, err := single.GetPage(2)
	require.NoError(t, err)
	require.NotNil(t, page2, "the row set must land on exactly three pages, no partial fourth")
	single.UnpinPage(2)
	page3, err := single.GetPage(3)
	require.NoError(t, err)
	assert.Nil(t, page3, "a fourth page would mean the boundary wasn't exact")
}
