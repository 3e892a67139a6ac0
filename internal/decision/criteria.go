package decision

import (
	"context"
	"fmt"
	"sort"
)

const FilterCriteria = "criteria"

// MatchCriteria compares required values against the event context by exact
// string equality. Keys are checked in sorted order and only the first
// failure is reported.
func MatchCriteria(criteria, eventContext map[string]string) Decision {
	if len(criteria) == 0 {
		return Now()
	}

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		actual, ok := eventContext[key]
		if !ok {
			return Never(fmt.Sprintf("required criteria key %q missing from event context", key))
		}
		if actual != criteria[key] {
			return Never(fmt.Sprintf("criteria key %q mismatch: expected %q, got %q", key, criteria[key], actual))
		}
	}
	return Now()
}

type CriteriaFilter struct{}

func NewCriteriaFilter() *CriteriaFilter {
	return &CriteriaFilter{}
}

func (f *CriteriaFilter) Name() string { return FilterCriteria }

func (f *CriteriaFilter) Evaluate(_ context.Context, c Candidate) (Decision, error) {
	return MatchCriteria(c.Template.Criteria, c.Event.Context), nil
}
