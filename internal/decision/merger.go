package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Opinion is a single filter's decision on a template.
type Opinion struct {
	Filter   string        `json:"filter"`
	Decision Decision      `json:"decision"`
	Duration time.Duration `json:"-"`
}

// Evaluation is the merged outcome for one candidate template. Err is set
// only for input errors, in which case Decision is meaningless.
type Evaluation struct {
	Template  Template  `json:"template"`
	Recipient string    `json:"recipient,omitempty"`
	Decision  Decision  `json:"decision"`
	Opinions  []Opinion `json:"opinions,omitempty"`
	Err       error     `json:"-"`
}

func (e Evaluation) Skipped() bool {
	return e.Err != nil
}

// Observer receives every opinion as it is produced. It must be safe for
// concurrent use.
type Observer func(tmpl *Template, op Opinion)

type Merger struct {
	filters     []Filter
	concurrency int
	observer    Observer
}

type MergerOption func(*Merger)

// WithConcurrency bounds the number of filter evaluations in flight. Zero or
// negative means unbounded.
func WithConcurrency(n int) MergerOption {
	return func(m *Merger) {
		m.concurrency = n
	}
}

func WithObserver(obs Observer) MergerOption {
	return func(m *Merger) {
		m.observer = obs
	}
}

func NewMerger(filters []Filter, opts ...MergerOption) *Merger {
	m := &Merger{filters: filters}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a filter. It must not be called while Evaluate is running.
func (m *Merger) Register(f Filter) {
	m.filters = append(m.filters, f)
}

func (m *Merger) Filters() []string {
	names := make([]string, len(m.filters))
	for i, f := range m.filters {
		names[i] = f.Name()
	}
	return names
}

// Evaluate runs every filter against every template concurrently and keeps
// the most restrictive decision per template. Results follow the order of
// templates. A lookup failure in any filter fails the whole evaluation.
func (m *Merger) Evaluate(ctx context.Context, evt *TriggeringEvent, templates []Template) ([]Evaluation, error) {
	results := make([]Evaluation, len(templates))
	opinions := make([][]Opinion, len(templates))
	inputErrs := make([][]error, len(templates))

	g, gCtx := errgroup.WithContext(ctx)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}

	for i := range templates {
		tmpl := &templates[i]
		results[i].Template = *tmpl

		recipient, err := tmpl.ResolveRecipient(evt)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Recipient = recipient

		opinions[i] = make([]Opinion, len(m.filters))
		inputErrs[i] = make([]error, len(m.filters))
		candidate := Candidate{Template: tmpl, Event: evt, Recipient: recipient}

		for j, f := range m.filters {
			g.Go(func() error {
				start := time.Now()
				d, err := f.Evaluate(gCtx, candidate)
				if err != nil {
					var inErr *InputError
					if errors.As(err, &inErr) {
						inputErrs[i][j] = err
						return nil
					}
					return &LookupError{Filter: f.Name(), TemplateID: tmpl.ID, Err: err}
				}

				op := Opinion{Filter: f.Name(), Decision: d, Duration: time.Since(start)}
				opinions[i][j] = op
				if m.observer != nil {
					m.observer(tmpl, op)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to evaluate templates: %w", err)
	}

	for i := range results {
		if results[i].Err != nil {
			continue
		}
		if err := errors.Join(inputErrs[i]...); err != nil {
			results[i].Err = err
			continue
		}

		results[i].Opinions = opinions[i]
		decisions := make([]Decision, len(opinions[i]))
		for j, op := range opinions[i] {
			decisions[j] = op.Decision
		}
		results[i].Decision = MostRestrictive(decisions...)
	}

	return results, nil
}
