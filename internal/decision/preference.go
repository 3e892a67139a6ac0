package decision

import (
	"context"
	"fmt"
	"time"

	"herald/pkg/clock"
)

const FilterPreference = "recipient_preference"

const (
	ReasonNoPreferences           = "no preferences specified for sender"
	ReasonClassNotPermitted       = "class not permitted for sender"
	ReasonRecipientResendInterval = "recipient's resend interval not elapsed"
	ReasonOutsideWindow           = "outside delivery window"
	ReasonInvalidWindow           = "delivery window timezone invalid"
)

// EvaluatePreferences checks, in order and stopping at the first failure,
// that preferences exist, that the template class is permitted, that the
// recipient's resend interval has passed since last, and that now is inside
// the delivery window. last may be nil.
func EvaluatePreferences(tmpl *Template, prefs *RecipientPreferences, last *DeliveryRecord, now time.Time) Decision {
	if prefs == nil {
		return Never(ReasonNoPreferences)
	}

	if !prefs.Permits(tmpl.MessageClass) {
		return Never(fmt.Sprintf("%s: %q", ReasonClassNotPermitted, tmpl.MessageClass))
	}

	if last != nil && prefs.ResendInterval > 0 {
		next := last.EffectiveAt().Add(prefs.ResendInterval)
		if now.Before(next) {
			return Never(fmt.Sprintf("%s: next send allowed at %s", ReasonRecipientResendInterval, next.UTC().Format(time.RFC3339)))
		}
	}

	if prefs.Window != nil {
		inside, err := prefs.Window.Contains(now)
		if err != nil {
			return Never(fmt.Sprintf("%s: %v", ReasonInvalidWindow, err))
		}
		if !inside {
			return Later(fmt.Sprintf("%s: %02d-%02d %s", ReasonOutsideWindow, prefs.Window.StartHour, prefs.Window.EndHour, prefs.Window.Timezone))
		}
	}

	return Now()
}

type PreferenceFilter struct {
	history HistoryStore
	prefs   PreferenceStore
	clock   clock.Clock
}

func NewPreferenceFilter(history HistoryStore, prefs PreferenceStore, clk clock.Clock) *PreferenceFilter {
	if clk == nil {
		clk = clock.Real()
	}
	return &PreferenceFilter{history: history, prefs: prefs, clock: clk}
}

func (f *PreferenceFilter) Name() string { return FilterPreference }

func (f *PreferenceFilter) Evaluate(ctx context.Context, c Candidate) (Decision, error) {
	prefs, err := f.prefs.GetPreferences(ctx, c.Recipient, c.Template.Sender)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	if prefs == nil || !prefs.Permits(c.Template.MessageClass) {
		return EvaluatePreferences(c.Template, prefs, nil, f.clock.Now()), nil
	}

	var last *DeliveryRecord
	if prefs.ResendInterval > 0 {
		history, err := f.history.FindDeliveries(ctx, QueryFor(c))
		if err != nil {
			return Decision{}, fmt.Errorf("failed to find deliveries: %w", err)
		}
		if len(history) > 0 {
			last = &history[0]
		}
	}

	return EvaluatePreferences(c.Template, prefs, last, f.clock.Now()), nil
}
