package decision

import (
	"context"
	"fmt"
	"time"

	"herald/pkg/clock"
)

const FilterSendRate = "send_rate"

const (
	ReasonMaxSendReached          = "max send reached"
	ReasonResendIntervalNotPassed = "resend interval not elapsed"
)

// EvaluateSendRate applies a template's max-send and resend-interval limits
// to the matching history, which must be ordered most recent first.
func EvaluateSendRate(tmpl *Template, history []DeliveryRecord, now time.Time) Decision {
	if tmpl.MaxSend <= 0 && tmpl.ResendInterval <= 0 {
		return Now()
	}

	if tmpl.MaxSend > 0 && len(history) >= tmpl.MaxSend {
		return Never(fmt.Sprintf("%s: %d of %d", ReasonMaxSendReached, len(history), tmpl.MaxSend))
	}

	if tmpl.ResendInterval > 0 && len(history) > 0 {
		next := history[0].EffectiveAt().Add(tmpl.ResendInterval)
		if now.Before(next) {
			return Never(fmt.Sprintf("%s: next send allowed at %s", ReasonResendIntervalNotPassed, next.UTC().Format(time.RFC3339)))
		}
	}

	return Now()
}

type SendRateFilter struct {
	history HistoryStore
	clock   clock.Clock
}

func NewSendRateFilter(history HistoryStore, clk clock.Clock) *SendRateFilter {
	if clk == nil {
		clk = clock.Real()
	}
	return &SendRateFilter{history: history, clock: clk}
}

func (f *SendRateFilter) Name() string { return FilterSendRate }

func (f *SendRateFilter) Evaluate(ctx context.Context, c Candidate) (Decision, error) {
	if c.Template.MaxSend <= 0 && c.Template.ResendInterval <= 0 {
		return Now(), nil
	}

	history, err := f.history.FindDeliveries(ctx, QueryFor(c))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to find deliveries: %w", err)
	}

	return EvaluateSendRate(c.Template, history, f.clock.Now()), nil
}
