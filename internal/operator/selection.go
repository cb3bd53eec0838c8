package operator

import "github.com/otterlake/imdbengine/internal/tuple"

// Selection wraps a child operator and a predicate; Next returns the
// first child tuple for which the predicate holds.
type Selection struct {
	child Operator
	pred  Predicate
}

// NewSelection constructs a Selection over child.
func NewSelection(child Operator, pred Predicate) *Selection {
	return &Selection{child: child, pred: pred}
}

func (s *Selection) Open() error { return s.child.Open() }

func (s *Selection) Next() (tuple.Tuple, bool, error) {
	for {
		t, ok, err := s.child.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			return tuple.Tuple{}, false, nil
		}
		if s.pred(t) {
			return t, true, nil
		}
	}
}

func (s *Selection) Close() error { return s.child.Close() }
