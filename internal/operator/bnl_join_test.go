package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterlake/imdbengine/internal/tuple"
)

// sliceOperator is an in-memory Operator over a fixed tuple slice, used
// to exercise join/selection/projection logic without touching disk.
type sliceOperator struct {
	rows   []tuple.Tuple
	idx    int
	opens  int
	closes int
}

func newSliceOperator(rows []tuple.Tuple) *sliceOperator {
	return &sliceOperator{rows: rows}
}

func (s *sliceOperator) Open() error {
	s.idx = 0
	s.opens++
	return nil
}

func (s *sliceOperator) Next() (tuple.Tuple, bool, error) {
	if s.idx >= len(s.rows) {
		return tuple.Tuple{}, false, nil
	}
	t := s.rows[s.idx]
	s.idx++
	return t, true, nil
}

func (s *sliceOperator) Close() error {
	s.closes++
	return nil
}

func mkTuple(cols map[string]string) tuple.Tuple {
	columns := make([]string, 0, len(cols))
	values := make([]string, 0, len(cols))
	for c, v := range cols {
		columns = append(columns, c)
		values = append(values, v)
	}
	return tuple.New(columns, values)
}

func drain(t *testing.T, op Operator) []tuple.Tuple {
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

func TestBlockNestedLoopJoin_EmitsEveryMatchingPair(t *testing.T) {
	outer := newSliceOperator([]tuple.Tuple{
		mkTuple(map[string]string{"Movies.movieId": "tt1", "Movies.title": "Film X"}),
		mkTuple(map[string]string{"Movies.movieId": "tt2", "Movies.title": "Film Y"}),
	})
	inner := newSliceOperator([]tuple.Tuple{
		mkTuple(map[string]string{"WorkedOn.movieId": "tt1", "WorkedOn.personId": "nm1"}),
		mkTuple(map[string]string{"WorkedOn.movieId": "tt2", "WorkedOn.personId": "nm2"}),
		mkTuple(map[string]string{"WorkedOn.movieId": "tt2", "WorkedOn.personId": "nm3"}),
	})
	join := NewBlockNestedLoopJoin(outer, inner, EqualJoinPredicate("Movies.movieId", "WorkedOn.movieId"), 8)

	out := drain(t, join)
	assert.Len(t, out, 3)
}

func TestBlockNestedLoopJoin_EmptyOuterNeverTouchesInner(t *testing.T) {
	outer := newSliceOperator(nil)
	inner := newSliceOperator([]tuple.Tuple{mkTuple(map[string]string{"a": "1"})})
	join := NewBlockNestedLoopJoin(outer, inner, EqualJoinPredicate("a", "a"), 8)

	out := drain(t, join)
	assert.Empty(t, out)
	assert.Equal(t, 0, inner.opens, "inner must never be opened when outer is empty")
}

func TestBlockNestedLoopJoin_EmptyInnerYieldsNothing(t *testing.T) {
	outer := newSliceOperator([]tuple.Tuple{mkTuple(map[string]string{"a": "1"})})
	inner := newSliceOperator(nil)
	join := NewBlockNestedLoopJoin(outer, inner, EqualJoinPredicate("a", "a"), 8)

	out := drain(t, join)
	assert.Empty(t, out)
}

func TestSelection_FiltersChild(t *testing.T) {
	child := newSliceOperator([]tuple.Tuple{
		mkTuple(map[string]string{"WorkedOn.category": "director"}),
		mkTuple(map[string]string{"WorkedOn.category": "actor"}),
		mkTuple(map[string]string{"WorkedOn.category": "Directors"}),
	})
	sel := NewSelection(child, EqualityPredicate("WorkedOn.category", "director"))

	out := drain(t, sel)
	assert.Len(t, out, 2)
}

func TestProjection_Pipelining_RenamesColumns(t *testing.T) {
	child := newSliceOperator([]tuple.Tuple{
		mkTuple(map[string]string{"Movies.movieId": "tt1", "Movies.title": "Film X"}),
	})
	proj := NewProjection(child, []tuple.ColumnMapping{
		{Input: "Movies.movieId", Output: "movieId"},
	})

	out := drain(t, proj)
	require.Len(t, out, 1)
	v, ok := out[0].Get("movieId")
	require.True(t, ok)
	assert.Equal(t, "tt1", v)
}
