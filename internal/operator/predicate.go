package operator

import (
	"strings"

	"github.com/otterlake/imdbengine/internal/tuple"
)

// Predicate is a function over a single tuple, used by Selection.
type Predicate func(tuple.Tuple) bool

// JoinPredicate is the binary variant used by BlockNestedLoopJoin; it is
// not usable in a Selection.
type JoinPredicate func(left, right tuple.Tuple) bool

// RangePredicate builds a predicate matching lexical string comparison
// on column against [lo, hi], inclusive on both ends.
func RangePredicate(column, lo, hi string) Predicate {
	return func(t tuple.Tuple) bool {
		v, ok := t.Get(column)
		if !ok {
			return false
		}
		return v >= lo && v <= hi
	}
}

// EqualityPredicate builds a case-insensitive, trimmed equality
// predicate. For a column name containing "category" (case-insensitive)
// matched against "director", the comparison degrades to a substring
// match against "direct" — the heuristic that IMDB category strings
// sometimes read "director" and sometimes "directors".
func EqualityPredicate(column, target string) Predicate {
	normalizedTarget := strings.ToLower(strings.TrimSpace(target))
	isCategoryDirector := strings.Contains(strings.ToLower(column), "category") && normalizedTarget == "director"

	return func(t tuple.Tuple) bool {
		v, ok := t.Get(column)
		if !ok {
			return false
		}
		normalizedValue := strings.ToLower(strings.TrimSpace(v))
		if isCategoryDirector {
			return strings.Contains(normalizedValue, "direct")
		}
		return normalizedValue == normalizedTarget
	}
}

// EqualJoinPredicate builds a JoinPredicate matching leftTuple[leftCol]
// exactly against rightTuple[rightCol]; unlike EqualityPredicate this is
// an exact comparison, no trimming or case-folding.
func EqualJoinPredicate(leftCol, rightCol string) JoinPredicate {
	return func(left, right tuple.Tuple) bool {
		lv, ok := left.Get(leftCol)
		if !ok {
			return false
		}
		rv, ok := right.Get(rightCol)
		if !ok {
			return false
		}
		return lv == rv
	}
}
