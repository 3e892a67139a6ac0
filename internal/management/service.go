// Package management is the administrative API: template and preference
// CRUD, delivery history lookups and dry-run evaluation.
package management

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"herald/internal/constants"
	"herald/internal/decision"
	"herald/internal/logger"
	"herald/internal/preferences"
	"herald/internal/templates"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type service struct {
	templates      templates.Repository
	prefs          preferences.Repository
	deliveries     DeliveryReader
	versioningRepo VersioningRepository
	events         *ConfigEventProducer
	merger         *decision.Merger
	logger         logger.Logger
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
	}
}

func WithPreferences(prefs preferences.Repository) ServiceOption {
	return func(s *service) {
		s.prefs = prefs
	}
}

func WithDeliveries(deliveries DeliveryReader) ServiceOption {
	return func(s *service) {
		s.deliveries = deliveries
	}
}

func WithConfigEvents(events *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.events = events
	}
}

// WithEvaluation enables dry runs using the given merger.
func WithEvaluation(merger *decision.Merger) ServiceOption {
	return func(s *service) {
		s.merger = merger
	}
}

func NewService(repo templates.Repository, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		templates: repo,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*TemplateView, error) {
	if err := ValidateCreateTemplate(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	tmpl := &decision.Template{
		TenantID:       req.TenantID,
		Subject:        req.Subject,
		Verb:           req.Verb,
		Name:           req.Name,
		Sender:         req.Sender,
		RecipientKey:   req.RecipientKey,
		MessageClass:   strings.ToLower(strings.TrimSpace(req.MessageClass)),
		Criteria:       req.Criteria,
		MaxSend:        req.MaxSend,
		ResendInterval: time.Duration(req.ResendIntervalSeconds) * time.Second,
		Condition:      req.Condition,
		Enabled:        getEnabledValue(req.Enabled),
	}

	if err := s.templates.CreateTemplate(ctx, tmpl); err != nil {
		return nil, wrapStoreError(err)
	}

	view := newTemplateView(tmpl)
	s.recordTemplateChange(ctx, &view, models.ActionCreate, nil)
	s.publishTemplateEvent(ctx, models.ActionCreate, tmpl.ID)
	return &view, nil
}

func (s *service) ListTemplates(ctx context.Context, tenantID string) ([]TemplateView, error) {
	list, err := s.templates.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	views := make([]TemplateView, len(list))
	for i := range list {
		views[i] = newTemplateView(&list[i])
	}
	return views, nil
}

func (s *service) GetTemplate(ctx context.Context, id string) (*TemplateView, error) {
	tmpl, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	view := newTemplateView(tmpl)
	return &view, nil
}

func (s *service) UpdateTemplate(ctx context.Context, id string, req UpdateTemplateRequest) (*TemplateView, error) {
	if err := ValidateUpdateTemplate(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	tmpl, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	oldView := newTemplateView(tmpl)
	applyTemplateUpdate(tmpl, req)

	if err := s.templates.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, wrapStoreError(err)
	}

	view := newTemplateView(tmpl)
	action := models.ActionUpdate
	if req.Enabled != nil && *req.Enabled != oldView.Enabled && isOnlyToggle(req) {
		action = models.ActionToggle
	}
	s.recordTemplateChange(ctx, &view, action, &oldView)
	s.publishTemplateEvent(ctx, action, tmpl.ID)
	return &view, nil
}

func (s *service) DeleteTemplate(ctx context.Context, id string) error {
	tmpl, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return wrapStoreError(err)
	}

	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return wrapStoreError(err)
	}

	old := newTemplateView(tmpl)
	s.audit(ctx, id, ResourceTemplate, models.ActionDelete, toMap(old), nil)
	s.publishTemplateEvent(ctx, models.ActionDelete, id)
	return nil
}

func (s *service) GetTemplateVersions(ctx context.Context, templateID string) ([]TemplateVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, templateID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, resourceID *string, resourceType string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, resourceID, resourceType, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) GetPreferences(ctx context.Context, recipient, sender string) (*PreferencesView, error) {
	if s.prefs == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "preference store not configured")
	}
	p, err := s.prefs.GetPreferences(ctx, recipient, sender)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	if p == nil {
		return nil, pkgerrors.ErrNotFound.WithMessage("preferences for %s from %s not found", recipient, sender)
	}
	view := newPreferencesView(p)
	return &view, nil
}

func (s *service) ListPreferences(ctx context.Context, recipient string) ([]PreferencesView, error) {
	if s.prefs == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "preference store not configured")
	}
	list, err := s.prefs.ListPreferences(ctx, recipient)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	views := make([]PreferencesView, len(list))
	for i := range list {
		views[i] = newPreferencesView(&list[i])
	}
	return views, nil
}

func (s *service) PutPreferences(ctx context.Context, recipient, sender string, req PutPreferencesRequest) (*PreferencesView, error) {
	if s.prefs == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "preference store not configured")
	}
	if err := ValidatePreferences(recipient, sender, req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	classes, _ := ParseAllowedClasses(req.AllowedClasses)

	old, err := s.prefs.GetPreferences(ctx, recipient, sender)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	p := &decision.RecipientPreferences{
		Recipient:      recipient,
		Sender:         sender,
		AllowedClasses: classes,
		Window:         req.Window,
		ResendInterval: time.Duration(req.ResendIntervalSeconds) * time.Second,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.prefs.UpsertPreferences(ctx, p); err != nil {
		return nil, wrapStoreError(err)
	}

	action := models.ActionCreate
	var oldValue map[string]interface{}
	if old != nil {
		action = models.ActionUpdate
		oldValue = toMap(newPreferencesView(old))
	}

	view := newPreferencesView(p)
	resourceID := preferences.ResourceID(recipient, sender)
	s.audit(ctx, resourceID, ResourcePreferences, action, oldValue, toMap(view))
	s.publishPreferenceEvent(ctx, action, resourceID)
	return &view, nil
}

func (s *service) DeletePreferences(ctx context.Context, recipient, sender string) error {
	if s.prefs == nil {
		return pkgerrors.ErrInternal.WithDetail("message", "preference store not configured")
	}
	if err := s.prefs.DeletePreferences(ctx, recipient, sender); err != nil {
		return wrapStoreError(err)
	}

	resourceID := preferences.ResourceID(recipient, sender)
	s.audit(ctx, resourceID, ResourcePreferences, models.ActionDelete, nil, nil)
	s.publishPreferenceEvent(ctx, models.ActionDelete, resourceID)
	return nil
}

func (s *service) ListDeliveries(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error) {
	if s.deliveries == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "delivery history not configured")
	}
	if strings.TrimSpace(recipient) == "" {
		return nil, pkgerrors.ErrValidation.WithMessage("recipient is required")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	records, err := s.deliveries.ListByRecipient(ctx, recipient, limit)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	if records == nil {
		records = []decision.DeliveryRecord{}
	}
	return records, nil
}

func (s *service) GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error) {
	if s.deliveries == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "delivery history not configured")
	}
	rec, err := s.deliveries.GetDelivery(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return rec, nil
}

// Evaluate runs the decision filters against a hypothetical event without
// recording anything.
func (s *service) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	if s.merger == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "evaluation not enabled")
	}

	evt, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}

	candidates, err := (&templateSource{repo: s.templates}).GetCandidateTemplates(ctx, evt.TenantID, evt.Subject, evt.Verb)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	evaluations, err := s.merger.Evaluate(ctx, evt, candidates)
	if err != nil {
		return nil, pkgerrors.ErrLookupFailed.WithCause(err)
	}

	resp := &EvaluateResponse{EventID: evt.ID, Evaluations: make([]TemplateEvaluation, 0, len(evaluations))}
	for _, ev := range evaluations {
		te := TemplateEvaluation{
			TemplateID:   ev.Template.ID,
			TemplateName: ev.Template.Name,
			Recipient:    ev.Recipient,
		}
		if ev.Skipped() {
			te.Error = ev.Err.Error()
		} else {
			te.Verdict = ev.Decision.Verdict.String()
			te.Reason = ev.Decision.Reason
			te.Opinions = ev.Opinions
		}
		resp.Evaluations = append(resp.Evaluations, te)
	}
	return resp, nil
}

func eventFromRequest(req EvaluateRequest) (*decision.TriggeringEvent, error) {
	id := req.ID
	if id == "" {
		id = "dry-run-" + uuid.New().String()
	}
	env := models.NewMessageEnvelopeBuilder().
		WithID(id).
		WithSource(SourceManagementService).
		WithTimestamp(time.Now().UTC()).
		WithPayload(map[string]interface{}{
			models.FieldTenantID:      req.TenantID,
			models.FieldSubject:       req.Subject,
			models.FieldVerb:          req.Verb,
			models.FieldIdentityKey:   req.IdentityKey,
			models.FieldIdentityValue: req.IdentityValue,
			models.FieldContext:       req.Context,
		}).
		Build()

	p, err := models.ParseEventPayload(env)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	return &decision.TriggeringEvent{
		ID:            env.ID,
		TenantID:      p.TenantID,
		Subject:       p.Subject,
		Verb:          p.Verb,
		Context:       p.Context,
		IdentityKey:   p.IdentityKey,
		IdentityValue: p.IdentityValue,
		OccurredAt:    p.OccurredAt,
	}, nil
}

// templateSource serves candidates straight from the store.
type templateSource struct {
	repo templates.Repository
}

func (t *templateSource) GetCandidateTemplates(ctx context.Context, tenantID, subject, verb string) ([]decision.Template, error) {
	list, err := t.repo.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]decision.Template, 0, len(list))
	for _, tmpl := range list {
		if tmpl.Enabled && tmpl.Subject == subject && tmpl.Verb == verb {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (s *service) recordTemplateChange(ctx context.Context, view *TemplateView, action string, old *TemplateView) {
	if s.versioningRepo == nil {
		return
	}

	data, err := json.Marshal(view)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to encode template version", "error", err, "template_id", view.ID)
		return
	}

	next, err := s.versioningRepo.GetNextVersion(ctx, view.ID)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to get next template version", "error", err, "template_id", view.ID)
		next = 1
	}
	version := &TemplateVersion{
		TemplateID:   view.ID,
		TemplateData: data,
		Version:      next,
		ChangedBy:    getChangedBy(ctx),
	}
	if err := s.versioningRepo.CreateVersion(ctx, version); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to record template version", "error", err, "template_id", view.ID)
	}

	var oldValue map[string]interface{}
	if old != nil {
		oldValue = toMap(*old)
	}
	s.audit(ctx, view.ID, ResourceTemplate, action, oldValue, toMap(*view))
}

func (s *service) audit(ctx context.Context, resourceID, resourceType, action string, oldValue, newValue map[string]interface{}) {
	if s.versioningRepo == nil {
		return
	}
	log := &AuditLog{
		ResourceID:   &resourceID,
		ResourceType: resourceType,
		Action:       action,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangedBy:    getChangedBy(ctx),
		IPAddress:    getClientIP(ctx),
	}
	if err := s.versioningRepo.CreateAuditLog(ctx, log); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write audit log", "error", err, "resource_id", resourceID)
	}
}

func (s *service) publishTemplateEvent(ctx context.Context, action, templateID string) {
	if err := s.events.PublishTemplateEvent(ctx, action, templateID, getChangedBy(ctx)); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish template update", "error", err, "template_id", templateID)
	}
}

func (s *service) publishPreferenceEvent(ctx context.Context, action, resourceID string) {
	if err := s.events.PublishPreferenceEvent(ctx, action, resourceID, getChangedBy(ctx)); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish preference update", "error", err, "resource_id", resourceID)
	}
}

func applyTemplateUpdate(tmpl *decision.Template, req UpdateTemplateRequest) {
	if req.Subject != nil {
		tmpl.Subject = *req.Subject
	}
	if req.Verb != nil {
		tmpl.Verb = *req.Verb
	}
	if req.Name != nil {
		tmpl.Name = *req.Name
	}
	if req.Sender != nil {
		tmpl.Sender = *req.Sender
	}
	if req.RecipientKey != nil {
		tmpl.RecipientKey = *req.RecipientKey
	}
	if req.MessageClass != nil {
		tmpl.MessageClass = strings.ToLower(strings.TrimSpace(*req.MessageClass))
	}
	if req.Criteria != nil {
		tmpl.Criteria = *req.Criteria
	}
	if req.MaxSend != nil {
		tmpl.MaxSend = *req.MaxSend
	}
	if req.ResendIntervalSeconds != nil {
		tmpl.ResendInterval = time.Duration(*req.ResendIntervalSeconds) * time.Second
	}
	if req.Condition != nil {
		tmpl.Condition = *req.Condition
	}
	if req.Enabled != nil {
		tmpl.Enabled = *req.Enabled
	}
}

func isOnlyToggle(req UpdateTemplateRequest) bool {
	return req.Subject == nil && req.Verb == nil && req.Name == nil && req.Sender == nil &&
		req.RecipientKey == nil && req.MessageClass == nil && req.Criteria == nil &&
		req.MaxSend == nil && req.ResendIntervalSeconds == nil && req.Condition == nil
}

// wrapStoreError keeps typed errors from the repositories and maps anything
// else to an internal error.
func wrapStoreError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

func getEnabledValue(reqEnabled *bool) bool {
	if reqEnabled == nil {
		return true
	}
	return *reqEnabled
}

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	clientIPKey contextKey = "client_ip"
)

func WithChangedBy(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func getChangedBy(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return id
	}
	return "system"
}

func getClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
