// Package history persists delivery records in Postgres. It is both the
// history the filters read and the sink the dispatcher writes to.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"herald/internal/constants"
	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

type Repository interface {
	decision.HistoryStore
	decision.DeliverySink
	GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error)
	UpdateStatus(ctx context.Context, id string, status decision.Status, message string, deliverAfter *time.Time) error
	Reschedule(ctx context.Context, id string, message string, deliverAfter time.Time, deferrals int) error
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]decision.DeliveryRecord, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const deliveryColumns = `id, template_id, tenant_id, event_id, sender, recipient, status, status_message,
		identity_key, identity_value, created_at, completed_at, deliver_after, deferrals`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (decision.DeliveryRecord, error) {
	var (
		rec          decision.DeliveryRecord
		status       string
		completedAt  sql.NullTime
		deliverAfter sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.TemplateID, &rec.TenantID, &rec.EventID, &rec.Sender, &rec.Recipient,
		&status, &rec.StatusMessage, &rec.IdentityKey, &rec.IdentityValue,
		&rec.CreatedAt, &completedAt, &deliverAfter, &rec.Deferrals,
	); err != nil {
		return rec, err
	}
	rec.Status = decision.Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if deliverAfter.Valid {
		t := deliverAfter.Time
		rec.DeliverAfter = &t
	}
	return rec, nil
}

func (r *PostgresRepository) queryDeliveries(ctx context.Context, query string, args ...interface{}) ([]decision.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var result []decision.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// FindDeliveries orders by effective time so the first row is the one the
// resend interval is measured from.
func (r *PostgresRepository) FindDeliveries(ctx context.Context, q decision.DeliveryQuery) (result []decision.DeliveryRecord, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreDeliveries, constants.DatabasePostgres, "find", start, err)
	}(time.Now())

	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE template_id = $1
		  AND recipient = $2
		  AND identity_key = $3
		  AND identity_value = $4
		  AND status NOT IN ($5, $6)
		ORDER BY COALESCE(completed_at, created_at) DESC, created_at DESC
	`, q.TemplateID, q.Recipient, q.IdentityKey, q.IdentityValue,
		string(decision.StatusFailed), string(decision.StatusVoid))
}

func (r *PostgresRepository) CreateDelivery(ctx context.Context, rec *decision.DeliveryRecord) (id string, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreDeliveries, constants.DatabasePostgres, "create", start, err)
	}(time.Now())

	if !rec.Status.Valid() {
		return "", pkgerrors.ErrValidation.WithMessage("invalid delivery status %q", rec.Status)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID, rec.TemplateID, rec.TenantID, rec.EventID, rec.Sender, rec.Recipient,
		string(rec.Status), rec.StatusMessage, rec.IdentityKey, rec.IdentityValue,
		rec.CreatedAt, nullTime(rec.CompletedAt), nullTime(rec.DeliverAfter), rec.Deferrals,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create delivery: %w", err)
	}

	return rec.ID, nil
}

func (r *PostgresRepository) GetDelivery(ctx context.Context, id string) (*decision.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE id = $1
	`, id)

	rec, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("delivery %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return &rec, nil
}

// UpdateStatus stamps completed_at when the new status is terminal.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status decision.Status, message string, deliverAfter *time.Time) (err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreDeliveries, constants.DatabasePostgres, "update_status", start, err)
	}(time.Now())

	if !status.Valid() {
		return pkgerrors.ErrValidation.WithMessage("invalid delivery status %q", status)
	}

	var completedAt *time.Time
	if isTerminal(status) {
		now := time.Now().UTC()
		completedAt = &now
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, status_message = $2, deliver_after = $3,
			completed_at = COALESCE($4, completed_at)
		WHERE id = $5
	`, string(status), message, nullTime(deliverAfter), nullTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithMessage("delivery %s not found", id)
	}
	return nil
}

// Reschedule moves a pending_retry record to its next release time and
// records how many times it has been deferred.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, message string, deliverAfter time.Time, deferrals int) (err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreDeliveries, constants.DatabasePostgres, "reschedule", start, err)
	}(time.Now())

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status_message = $1, deliver_after = $2, deferrals = $3
		WHERE id = $4 AND status = $5
	`, message, deliverAfter, deferrals, id, string(decision.StatusPendingRetry))
	if err != nil {
		return fmt.Errorf("failed to reschedule delivery: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithMessage("pending delivery %s not found", id)
	}
	return nil
}

func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]decision.DeliveryRecord, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE recipient = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipient, limit)
}

// ListOverdue returns deferred records whose release time passed before the
// given instant, oldest first.
func (r *PostgresRepository) ListOverdue(ctx context.Context, before time.Time, limit int) (result []decision.DeliveryRecord, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreDeliveries, constants.DatabasePostgres, "list_overdue", start, err)
	}(time.Now())

	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE status = $1
		  AND deliver_after IS NOT NULL
		  AND deliver_after < $2
		ORDER BY deliver_after ASC
		LIMIT $3
	`, string(decision.StatusPendingRetry), before, limit)
}

func isTerminal(s decision.Status) bool {
	return s == decision.StatusDelivered || s == decision.StatusFailed || s == decision.StatusVoid
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
