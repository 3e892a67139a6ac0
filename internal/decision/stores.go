package decision

import "context"

type TemplateSource interface {
	GetCandidateTemplates(ctx context.Context, tenantID, subject, verb string) ([]Template, error)
}

// HistoryStore returns matching deliveries most recent first, excluding
// failed and void records.
type HistoryStore interface {
	FindDeliveries(ctx context.Context, q DeliveryQuery) ([]DeliveryRecord, error)
}

// PreferenceStore returns nil and no error when no preferences exist.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, recipient, sender string) (*RecipientPreferences, error)
}

type DeliverySink interface {
	CreateDelivery(ctx context.Context, record *DeliveryRecord) (string, error)
}
