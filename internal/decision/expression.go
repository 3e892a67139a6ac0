package decision

import (
	"context"
	"fmt"

	"herald/pkg/cel"
)

const (
	FilterCondition = "condition"

	ReasonConditionNotMet = "template condition not satisfied"
	ReasonConditionError  = "template condition could not be evaluated"
)

// ConditionFilter vetoes a template whose optional CEL condition does not
// hold for the event. Compile and evaluation failures also veto.
type ConditionFilter struct {
	evaluator *cel.Evaluator
}

func NewConditionFilter(evaluator *cel.Evaluator) *ConditionFilter {
	return &ConditionFilter{evaluator: evaluator}
}

func (f *ConditionFilter) Name() string { return FilterCondition }

func (f *ConditionFilter) Evaluate(ctx context.Context, c Candidate) (Decision, error) {
	if c.Template.Condition == "" {
		return Now(), nil
	}

	ok, err := f.evaluator.EvaluateCondition(ctx, c.Template.Condition, cel.Input{
		TenantID:      c.Event.TenantID,
		Subject:       c.Event.Subject,
		Verb:          c.Event.Verb,
		Context:       c.Event.Context,
		IdentityKey:   c.Event.IdentityKey,
		IdentityValue: c.Event.IdentityValue,
		OccurredAt:    c.Event.OccurredAt,
	})
	if err != nil {
		return Never(fmt.Sprintf("%s: %v", ReasonConditionError, err)), nil
	}
	if !ok {
		return Never(ReasonConditionNotMet), nil
	}
	return Now(), nil
}
