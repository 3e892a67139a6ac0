package management

import (
	"encoding/json"
	"time"

	"herald/internal/decision"
)

// TemplateView is the API shape of a template. Durations are whole seconds.
type TemplateView struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`
	Subject               string            `json:"subject"`
	Verb                  string            `json:"verb"`
	Name                  string            `json:"name"`
	Sender                string            `json:"sender"`
	RecipientKey          string            `json:"recipient_key"`
	MessageClass          string            `json:"message_class"`
	Criteria              map[string]string `json:"criteria,omitempty"`
	MaxSend               int               `json:"max_send"`
	ResendIntervalSeconds int64             `json:"resend_interval_seconds"`
	Condition             string            `json:"condition,omitempty"`
	Enabled               bool              `json:"enabled"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func newTemplateView(t *decision.Template) TemplateView {
	criteria := make(map[string]string, len(t.Criteria))
	for k, v := range t.Criteria {
		criteria[k] = v
	}
	return TemplateView{
		ID:                    t.ID,
		TenantID:              t.TenantID,
		Subject:               t.Subject,
		Verb:                  t.Verb,
		Name:                  t.Name,
		Sender:                t.Sender,
		RecipientKey:          t.RecipientKey,
		MessageClass:          t.MessageClass,
		Criteria:              criteria,
		MaxSend:               t.MaxSend,
		ResendIntervalSeconds: int64(t.ResendInterval / time.Second),
		Condition:             t.Condition,
		Enabled:               t.Enabled,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

type CreateTemplateRequest struct {
	TenantID              string            `json:"tenant_id" binding:"required"`
	Subject               string            `json:"subject" binding:"required"`
	Verb                  string            `json:"verb" binding:"required"`
	Name                  string            `json:"name" binding:"required"`
	Sender                string            `json:"sender" binding:"required"`
	RecipientKey          string            `json:"recipient_key" binding:"required"`
	MessageClass          string            `json:"message_class"`
	Criteria              map[string]string `json:"criteria"`
	MaxSend               int               `json:"max_send"`
	ResendIntervalSeconds int64             `json:"resend_interval_seconds"`
	Condition             string            `json:"condition"`
	Enabled               *bool             `json:"enabled"`
}

type UpdateTemplateRequest struct {
	Subject               *string            `json:"subject"`
	Verb                  *string            `json:"verb"`
	Name                  *string            `json:"name"`
	Sender                *string            `json:"sender"`
	RecipientKey          *string            `json:"recipient_key"`
	MessageClass          *string            `json:"message_class"`
	Criteria              *map[string]string `json:"criteria"`
	MaxSend               *int               `json:"max_send"`
	ResendIntervalSeconds *int64             `json:"resend_interval_seconds"`
	Condition             *string            `json:"condition"`
	Enabled               *bool              `json:"enabled"`
}

// PreferencesView is the API shape of a recipient's preferences for one sender.
type PreferencesView struct {
	Recipient             string                   `json:"recipient"`
	Sender                string                   `json:"sender"`
	AllowedClasses        []string                 `json:"allowed_classes"`
	Window                *decision.DeliveryWindow `json:"window,omitempty"`
	ResendIntervalSeconds int64                    `json:"resend_interval_seconds"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

func newPreferencesView(p *decision.RecipientPreferences) PreferencesView {
	classes := p.AllowedClasses
	if classes == nil {
		classes = []string{}
	}
	return PreferencesView{
		Recipient:             p.Recipient,
		Sender:                p.Sender,
		AllowedClasses:        classes,
		Window:                p.Window,
		ResendIntervalSeconds: int64(p.ResendInterval / time.Second),
		UpdatedAt:             p.UpdatedAt,
	}
}

// PutPreferencesRequest accepts allowed_classes either as a JSON array or as
// a comma-delimited string.
type PutPreferencesRequest struct {
	AllowedClasses        json.RawMessage          `json:"allowed_classes" swaggertype:"array,string"`
	Window                *decision.DeliveryWindow `json:"window"`
	ResendIntervalSeconds int64                    `json:"resend_interval_seconds"`
}

// EvaluateRequest describes a hypothetical event for a dry run.
type EvaluateRequest struct {
	ID            string                 `json:"id"`
	TenantID      string                 `json:"tenant_id" binding:"required"`
	Subject       string                 `json:"subject" binding:"required"`
	Verb          string                 `json:"verb" binding:"required"`
	IdentityKey   string                 `json:"identity_key"`
	IdentityValue string                 `json:"identity_value"`
	Context       map[string]interface{} `json:"context"`
}

type TemplateEvaluation struct {
	TemplateID   string             `json:"template_id"`
	TemplateName string             `json:"template_name"`
	Recipient    string             `json:"recipient,omitempty"`
	Verdict      string             `json:"verdict,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Opinions     []decision.Opinion `json:"opinions,omitempty"`
	Error        string             `json:"error,omitempty"`
}

type EvaluateResponse struct {
	EventID     string               `json:"event_id"`
	Evaluations []TemplateEvaluation `json:"evaluations"`
}
