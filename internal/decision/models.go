package decision

import (
	"fmt"
	"strings"
	"time"
)

// TriggeringEvent is an immutable occurrence received from the event bus.
// Context holds the flattened event metadata.
type TriggeringEvent struct {
	ID            string
	TenantID      string
	Subject       string
	Verb          string
	Context       map[string]string
	IdentityKey   string
	IdentityValue string
	OccurredAt    time.Time
}

func (e *TriggeringEvent) Lookup(key string) (string, bool) {
	v, ok := e.Context[key]
	return v, ok
}

// Template is a configured message that may be sent in response to events
// matching its (tenant, subject, verb).
type Template struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	Subject        string            `json:"subject"`
	Verb           string            `json:"verb"`
	Name           string            `json:"name"`
	Sender         string            `json:"sender"`
	RecipientKey   string            `json:"recipient_key"`
	MessageClass   string            `json:"message_class"`
	Criteria       map[string]string `json:"criteria,omitempty"`
	MaxSend        int               `json:"max_send"`
	ResendInterval time.Duration     `json:"resend_interval"`
	Condition      string            `json:"condition,omitempty"`
	Enabled        bool              `json:"enabled"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ResolveRecipient reads the recipient address from the event context.
func (t *Template) ResolveRecipient(evt *TriggeringEvent) (string, error) {
	if t.RecipientKey == "" {
		return "", &InputError{TemplateID: t.ID, Key: t.RecipientKey}
	}
	v, ok := evt.Lookup(t.RecipientKey)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &InputError{TemplateID: t.ID, Key: t.RecipientKey}
	}
	return v, nil
}

type Status string

const (
	StatusPendingDelivery Status = "pending_delivery"
	StatusPendingRetry    Status = "pending_retry"
	StatusDelivered       Status = "delivered"
	StatusFailed          Status = "failed"
	StatusVoid            Status = "void"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingDelivery, StatusPendingRetry, StatusDelivered, StatusFailed, StatusVoid:
		return true
	}
	return false
}

// Counted reports whether a record in this status counts toward send limits.
func (s Status) Counted() bool {
	return s != StatusFailed && s != StatusVoid
}

// StatusFor maps a non-vetoing verdict to the status of the record it creates.
func StatusFor(v Verdict) (Status, error) {
	switch v {
	case SendNow:
		return StatusPendingDelivery, nil
	case SendLater:
		return StatusPendingRetry, nil
	default:
		return "", fmt.Errorf("verdict %s creates no delivery", v)
	}
}

type DeliveryRecord struct {
	ID            string     `json:"id"`
	TemplateID    string     `json:"template_id"`
	TenantID      string     `json:"tenant_id"`
	EventID       string     `json:"event_id"`
	Sender        string     `json:"sender"`
	Recipient     string     `json:"recipient"`
	Status        Status     `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	IdentityKey   string     `json:"identity_key,omitempty"`
	IdentityValue string     `json:"identity_value,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DeliverAfter  *time.Time `json:"deliver_after,omitempty"`
	Deferrals     int        `json:"deferrals,omitempty"`
}

// EffectiveAt is the completion time when known, otherwise the creation time.
func (r *DeliveryRecord) EffectiveAt() time.Time {
	if r.CompletedAt != nil && !r.CompletedAt.IsZero() {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// DeliveryQuery correlates repeat occurrences of the same logical trigger.
type DeliveryQuery struct {
	TemplateID    string
	Recipient     string
	IdentityKey   string
	IdentityValue string
}

func QueryFor(c Candidate) DeliveryQuery {
	return DeliveryQuery{
		TemplateID:    c.Template.ID,
		Recipient:     c.Recipient,
		IdentityKey:   c.Event.IdentityKey,
		IdentityValue: c.Event.IdentityValue,
	}
}

// DeliveryWindow is an inclusive range of local hours. StartHour greater than
// EndHour wraps past midnight.
type DeliveryWindow struct {
	StartHour int    `json:"start_hour" bson:"start_hour"`
	EndHour   int    `json:"end_hour" bson:"end_hour"`
	Timezone  string `json:"timezone" bson:"timezone"`
}

func (w DeliveryWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("start hour %d out of range 0-23", w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("end hour %d out of range 0-23", w.EndHour)
	}
	if _, err := w.location(); err != nil {
		return err
	}
	return nil
}

func (w DeliveryWindow) location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", w.Timezone, err)
	}
	return loc, nil
}

// Contains reports whether the local hour of t falls inside the window.
func (w DeliveryWindow) Contains(t time.Time) (bool, error) {
	loc, err := w.location()
	if err != nil {
		return false, err
	}
	hour := t.In(loc).Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour <= w.EndHour, nil
	}
	return hour >= w.StartHour || hour <= w.EndHour, nil
}

// NextOpening returns the first instant at or after t that is inside the window.
func (w DeliveryWindow) NextOpening(t time.Time) (time.Time, error) {
	loc, err := w.location()
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(loc)
	if ok, _ := w.Contains(local); ok {
		return t, nil
	}
	opening := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, loc)
	if !opening.After(local) {
		opening = opening.AddDate(0, 0, 1)
	}
	return opening, nil
}

// RecipientPreferences is what a recipient allows a given sender to do.
type RecipientPreferences struct {
	Recipient      string          `json:"recipient" bson:"recipient"`
	Sender         string          `json:"sender" bson:"sender"`
	AllowedClasses []string        `json:"allowed_classes" bson:"allowed_classes"`
	Window         *DeliveryWindow `json:"window,omitempty" bson:"window,omitempty"`
	ResendInterval time.Duration   `json:"resend_interval" bson:"resend_interval"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}

// Permits compares the class case-insensitively.
func (p *RecipientPreferences) Permits(class string) bool {
	for _, allowed := range p.AllowedClasses {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(class)) {
			return true
		}
	}
	return false
}

// ParseClasses splits a comma-delimited class list, normalising case and
// dropping empty entries.
func ParseClasses(s string) []string {
	parts := strings.Split(s, ",")
	classes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			classes = append(classes, p)
		}
	}
	return classes
}
