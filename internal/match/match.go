// Package match aligns the editions of two snapshots of the same product by
// exact edition name.
package match

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

// DuplicatePolicy decides what happens when one snapshot lists the same
// edition name more than once.
type DuplicatePolicy string

const (
	// LastWins keeps the later occurrence in the edition sequence.
	LastWins DuplicatePolicy = "last_wins"
	// Reject fails the match with ErrDuplicateEdition.
	Reject DuplicatePolicy = "reject"
)

// ErrDuplicateEdition is returned under the Reject policy.
var ErrDuplicateEdition = eris.New("match: duplicate edition name")

// ParsePolicy maps a config value to a policy. Empty selects LastWins.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", LastWins:
		return LastWins, nil
	case Reject:
		return Reject, nil
	default:
		return "", eris.Errorf("match: unknown duplicate policy %q", s)
	}
}

// Pair is one edition present in both snapshots.
type Pair struct {
	Name string
	A    model.Edition
	B    model.Edition
}

// Matcher aligns editions under a fixed duplicate policy.
type Matcher struct {
	policy DuplicatePolicy
}

// New creates a Matcher. An empty policy means LastWins.
func New(policy DuplicatePolicy) *Matcher {
	if policy == "" {
		policy = LastWins
	}
	return &Matcher{policy: policy}
}

// Policy returns the active duplicate policy.
func (m *Matcher) Policy() DuplicatePolicy { return m.policy }

// Index builds the name-keyed lookup for one snapshot.
func (m *Matcher) Index(s model.Snapshot) (map[string]model.Edition, error) {
	idx := make(map[string]model.Edition, len(s.Editions))
	for _, e := range s.Editions {
		if _, dup := idx[e.Name]; dup && m.policy == Reject {
			return nil, eris.Wrapf(ErrDuplicateEdition, "product %s edition %q", s.ProductID, e.Name)
		}
		idx[e.Name] = e
	}
	return idx, nil
}

// Match returns the editions whose names appear in both a and b, in the
// order they first appear in b. Editions unique to one side are dropped.
func (m *Matcher) Match(a, b model.Snapshot) ([]Pair, error) {
	ia, err := m.Index(a)
	if err != nil {
		return nil, err
	}
	ib, err := m.Index(b)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(ib))
	seen := make(map[string]struct{}, len(ib))
	for _, e := range b.Editions {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}

		ea, ok := ia[e.Name]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Name: e.Name, A: ea, B: ib[e.Name]})
	}
	return pairs, nil
}
