package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"herald/internal/constants"
	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

type Repository interface {
	GetEnabledTemplates(ctx context.Context) ([]decision.Template, error)
	CreateTemplate(ctx context.Context, tmpl *decision.Template) error
	GetTemplate(ctx context.Context, id string) (*decision.Template, error)
	ListTemplates(ctx context.Context, tenantID string) ([]decision.Template, error)
	UpdateTemplate(ctx context.Context, tmpl *decision.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const templateColumns = `id, tenant_id, subject, verb, name, sender, recipient_key, message_class,
		criteria, max_send, resend_interval_seconds, condition, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (decision.Template, error) {
	var (
		tmpl           decision.Template
		criteria       []byte
		resendInterval int64
	)
	if err := row.Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.Subject, &tmpl.Verb, &tmpl.Name,
		&tmpl.Sender, &tmpl.RecipientKey, &tmpl.MessageClass,
		&criteria, &tmpl.MaxSend, &resendInterval, &tmpl.Condition,
		&tmpl.Enabled, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	); err != nil {
		return tmpl, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &tmpl.Criteria); err != nil {
			return tmpl, fmt.Errorf("failed to decode criteria for template %s: %w", tmpl.ID, err)
		}
	}
	tmpl.ResendInterval = time.Duration(resendInterval) * time.Second
	return tmpl, nil
}

func encodeCriteria(criteria map[string]string) ([]byte, error) {
	if criteria == nil {
		criteria = map[string]string{}
	}
	return json.Marshal(criteria)
}

func (r *PostgresRepository) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]decision.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var result []decision.Template
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		result = append(result, tmpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) GetEnabledTemplates(ctx context.Context) (result []decision.Template, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreTemplates, constants.DatabasePostgres, "get_enabled", start, err)
	}(time.Now())

	return r.queryTemplates(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE enabled = true
		ORDER BY created_at ASC, id ASC
	`)
}

func (r *PostgresRepository) ListTemplates(ctx context.Context, tenantID string) (result []decision.Template, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreTemplates, constants.DatabasePostgres, "list", start, err)
	}(time.Now())

	if tenantID == "" {
		return r.queryTemplates(ctx, `
			SELECT `+templateColumns+`
			FROM templates
			ORDER BY created_at DESC
		`)
	}
	return r.queryTemplates(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
}

func (r *PostgresRepository) GetTemplate(ctx context.Context, id string) (*decision.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE id = $1
	`, id)

	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("template %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tmpl, nil
}

func (r *PostgresRepository) CreateTemplate(ctx context.Context, tmpl *decision.Template) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	criteria, err := encodeCriteria(tmpl.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		tmpl.ID, tmpl.TenantID, tmpl.Subject, tmpl.Verb, tmpl.Name,
		tmpl.Sender, tmpl.RecipientKey, tmpl.MessageClass,
		criteria, tmpl.MaxSend, int64(tmpl.ResendInterval/time.Second), tmpl.Condition,
		tmpl.Enabled, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("template '%s' already exists for tenant '%s'", tmpl.Name, tmpl.TenantID))
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

func (r *PostgresRepository) UpdateTemplate(ctx context.Context, tmpl *decision.Template) error {
	tmpl.UpdatedAt = time.Now().UTC()

	criteria, err := encodeCriteria(tmpl.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE templates
		SET tenant_id = $1, subject = $2, verb = $3, name = $4, sender = $5, recipient_key = $6,
			message_class = $7, criteria = $8, max_send = $9, resend_interval_seconds = $10,
			condition = $11, enabled = $12, updated_at = $13
		WHERE id = $14
	`,
		tmpl.TenantID, tmpl.Subject, tmpl.Verb, tmpl.Name, tmpl.Sender, tmpl.RecipientKey,
		tmpl.MessageClass, criteria, tmpl.MaxSend, int64(tmpl.ResendInterval/time.Second),
		tmpl.Condition, tmpl.Enabled, tmpl.UpdatedAt, tmpl.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("template '%s' already exists for tenant '%s'", tmpl.Name, tmpl.TenantID))
		}
		return fmt.Errorf("failed to update template: %w", err)
	}

	return expectOneRow(res, tmpl.ID)
}

func (r *PostgresRepository) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithMessage("template %s not found", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
