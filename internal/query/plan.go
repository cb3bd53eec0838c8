// Package query assembles the fixed canonical join plan of §4.5 out of
// the iterator operators in internal/operator. There is exactly one
// plan shape: it is not a general planner, it is the wiring for one
// query, with a single branch point (index scan vs. selection+scan on
// Movies.title) depending on whether a title index is available.
package query

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/otterlake/imdbengine/internal/btree"
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/operator"
	"github.com/otterlake/imdbengine/internal/storage"
	"github.com/otterlake/imdbengine/internal/tuple"
)

// Files names the on-disk files the plan reads from and, for the
// intermediate director-filtered join input, writes to.
type Files struct {
	Movies           string
	WorkedOn         string
	People           string
	TitleIndex       string // logical name registered with pool; Build does not read it
	FilteredWorkedOn string // physical path for the materialized intermediate
}

// Params bounds the query: a lexical range over Movies.title and the
// buffer budget (in pages) the join operators divide among themselves.
type Params struct {
	TitleLo    string
	TitleHi    string
	BufferSize int
}

// Build assembles the canonical plan:
//
//	Proj[title, name](
//	  BNL[personId = People.personId](
//	    BNL[movieId = movieId](
//	      Proj[movieId, title](MoviesSide),
//	      Materialise(Proj[movieId, personId](Selection[category≈"director"](Scan(WorkedOn))))
//	    ),
//	    Scan(People)
//	  )
//	)
//
// MoviesSide is an IndexScan over indexTree when indexTree is non-nil,
// otherwise a Selection wrapping a full Scan of Movies.
func Build(pool *buffer.Pool, files Files, params Params, indexTree *btree.Tree, logger *zap.Logger) (operator.Operator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if params.BufferSize < 1 {
		return nil, fmt.Errorf("query: buffer size must be positive, got %d", params.BufferSize)
	}

	moviesSingle := buffer.NewSinglePool(pool, files.Movies)
	workedOnSingle := buffer.NewSinglePool(pool, files.WorkedOn)
	peopleSingle := buffer.NewSinglePool(pool, files.People)

	var moviesSide operator.Operator
	if indexTree != nil {
		logger.Sugar().Debugw("using title index for movies side", "lo", params.TitleLo, "hi", params.TitleHi)
		moviesSide = operator.NewIndexScan(indexTree, moviesSingle, storage.Movies, nil, params.TitleLo, params.TitleHi)
	} else {
		logger.Sugar().Debugw("no title index available, falling back to full scan and selection")
		fullScan := operator.NewScan(moviesSingle, storage.Movies, nil)
		moviesSide = operator.NewSelection(fullScan, operator.RangePredicate("Movies.title", params.TitleLo, params.TitleHi))
	}
	moviesProj := operator.NewProjection(moviesSide, []tuple.ColumnMapping{
		{Input: "Movies.movieId", Output: "movieId"},
		{Input: "Movies.title", Output: "title"},
	})

	workedOnScan := operator.NewScan(workedOnSingle, storage.WorkedOn, nil)
	directorSel := operator.NewSelection(workedOnScan, operator.EqualityPredicate("WorkedOn.category", "director"))
	directorProj := operator.NewMaterializingProjection(
		directorSel,
		[]tuple.ColumnMapping{
			{Input: "WorkedOn.movieId", Output: "movieId"},
			{Input: "WorkedOn.personId", Output: "personId"},
		},
		pool, "filtered_worked_on", files.FilteredWorkedOn, "movieId",
	)

	movieJoin := operator.NewBlockNestedLoopJoin(
		moviesProj, directorProj,
		operator.EqualJoinPredicate("movieId", "movieId"),
		params.BufferSize,
	)

	peopleScan := operator.NewScan(peopleSingle, storage.People, nil)
	personJoin := operator.NewBlockNestedLoopJoin(
		movieJoin, peopleScan,
		operator.EqualJoinPredicate("personId", "People.personId"),
		params.BufferSize,
	)

	final := operator.NewProjection(personJoin, []tuple.ColumnMapping{
		{Input: "title", Output: "title"},
		{Input: "People.name", Output: "name"},
	})
	return final, nil
}
