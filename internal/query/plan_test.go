package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/btree"
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/operator"
	"github.com/otterlake/imdbengine/internal/storage"
	"github.com/otterlake/imdbengine/internal/tuple"
)

func registerTempFile(t *testing.T, pool *buffer.Pool, name string) *buffer.SinglePool {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "imdbengine-query-*")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, pool.RegisterFile(name, f, 0))
	return buffer.NewSinglePool(pool, name)
}

func seedTable(t *testing.T, single *buffer.SinglePool, table storage.TableKind, rows [][]string) {
	t.Helper()
	var page *storage.RowPage
	flush := func() {
		if page != nil {
			single.MarkDirty(page.PageID())
			single.UnpinPage(page.PageID())
			page = nil
		}
	}
	for _, r := range rows {
		if page == nil {
			p, err := single.CreatePage()
			require.NoError(t, err)
			page = storage.NewRowPage(p, table)
		}
		if _, ok := page.InsertRow(r); !ok {
			flush()
			p, err := single.CreatePage()
			require.NoError(t, err)
			page = storage.NewRowPage(p, table)
			_, ok := page.InsertRow(r)
			require.True(t, ok)
		}
	}
	flush()
	require.NoError(t, single.Force())
}

func seedData(t *testing.T, pool *buffer.Pool) {
	t.Helper()
	seedTable(t, buffer.NewSinglePool(pool, "movies"), storage.Movies, [][]string{
		{"tt0001", "Film One"},
		{"tt0002", "Film Two"},
	})
	seedTable(t, buffer.NewSinglePool(pool, "workedon"), storage.WorkedOn, [][]string{
		{"tt0001", "nm001", "director"},
		{"tt0001", "nm002", "actor"},
		{"tt0002", "nm003", "Directors"},
	})
	seedTable(t, buffer.NewSinglePool(pool, "people"), storage.People, [][]string{
		{"nm001", "Alice"},
		{"nm003", "Carol"},
	})
}

func drainPlan(t *testing.T, op operator.Operator) []tuple.Tuple {
	t.Helper()
	require.NoError(t, op.Open())
	var out []tuple.Tuple
	for {
		tup, ok, err := op.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, tup)
	}
	require.NoError(t, op.Close())
	return out
}

func TestBuild_FullScanFallback_JoinsAcrossThreeTables(t *testing.T) {
	pool := buffer.NewPool(zap.NewNop(), 32)
	registerTempFile(t, pool, "movies")
	registerTempFile(t, pool, "workedon")
	registerTempFile(t, pool, "people")
	seedData(t, pool)

	files := Files{
		Movies:           "movies",
		WorkedOn:         "workedon",
		People:           "people",
		FilteredWorkedOn: filepath.Join(t.TempDir(), "filtered.bin"),
	}
	params := Params{TitleLo: "A", TitleHi: "Z", BufferSize: 8}

	plan, err := Build(pool, files, params, nil, zap.NewNop())
	require.NoError(t, err)

	out := drainPlan(t, plan)
	require.Len(t, out, 2)

	got := map[string]string{}
	for _, tup := range out {
		title, _ := tup.Get("title")
		name, _ := tup.Get("name")
		got[title] = name
	}
	assert.Equal(t, "Alice", got["Film One"])
	assert.Equal(t, "Carol", got["Film Two"])
}

func TestBuild_TitleRangeExcludesOutOfRangeMovie(t *testing.T) {
	pool := buffer.NewPool(zap.NewNop(), 32)
	registerTempFile(t, pool, "movies")
	registerTempFile(t, pool, "workedon")
	registerTempFile(t, pool, "people")
	seedData(t, pool)

	files := Files{
		Movies:           "movies",
		WorkedOn:         "workedon",
		People:           "people",
		FilteredWorkedOn: filepath.Join(t.TempDir(), "filtered.bin"),
	}
	// Only "Film One" falls in this range.
	params := Params{TitleLo: "A", TitleHi: "Film One", BufferSize: 8}

	plan, err := Build(pool, files, params, nil, zap.NewNop())
	require.NoError(t, err)

	out := drainPlan(t, plan)
	require.Len(t, out, 1)
	title, _ := out[0].Get("title")
	assert.Equal(t, "Film One", title)
}

func TestBuild_UsesTitleIndexWhenProvided(t *testing.T) {
	pool := buffer.NewPool(zap.NewNop(), 32)
	moviesSingle := registerTempFile(t, pool, "movies")
	registerTempFile(t, pool, "workedon")
	registerTempFile(t, pool, "people")
	seedData(t, pool)

	idxFile, err := os.CreateTemp(t.TempDir(), "imdbengine-idx-*")
	require.NoError(t, err)
	t.Cleanup(func() { idxFile.Close() })
	require.NoError(t, pool.RegisterFile("title_index", idxFile, 0))
	idxSingle := buffer.NewSinglePool(pool, "title_index")

	tree, err := btree.Open(idxSingle, zap.NewNop(), 4)
	require.NoError(t, err)
	require.NoError(t, tree.Insert("Film One", storage.RID{PageID: 0, SlotID: 0}))
	require.NoError(t, tree.Insert("Film Two", storage.RID{PageID: 0, SlotID: 1}))
	require.NoError(t, tree.Flush())
	_ = moviesSingle

	files := Files{
		Movies:           "movies",
		WorkedOn:         "workedon",
		People:           "people",
		FilteredWorkedOn: filepath.Join(t.TempDir(), "filtered.bin"),
	}
	params := Params{TitleLo: "A", TitleHi: "Z", BufferSize: 8}

	plan, err := Build(pool, files, params, tree, zap.NewNop())
	require.NoError(t, err)

	out := drainPlan(t, plan)
	require.Len(t, out, 2)
}
