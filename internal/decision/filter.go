package decision

import "context"

// Candidate is one template being evaluated for one event, with the
// recipient already resolved.
type Candidate struct {
	Template  *Template
	Event     *TriggeringEvent
	Recipient string
}

// Filter gives an opinion on a candidate. Filters must not mutate shared
// state; the merger calls them concurrently. A returned error is treated as
// a lookup failure unless it is an *InputError.
type Filter interface {
	Name() string
	Evaluate(ctx context.Context, c Candidate) (Decision, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc struct {
	FilterName string
	Fn         func(ctx context.Context, c Candidate) (Decision, error)
}

func (f FilterFunc) Name() string { return f.FilterName }

func (f FilterFunc) Evaluate(ctx context.Context, c Candidate) (Decision, error) {
	return f.Fn(ctx, c)
}
