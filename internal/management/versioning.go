package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"herald/internal/constants"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

const (
	ResourceTemplate    = "template"
	ResourcePreferences = "preferences"
)

type TemplateVersion struct {
	ID           string          `json:"id"`
	TemplateID   string          `json:"template_id"`
	TemplateData json.RawMessage `json:"template_data" swaggertype:"object"`
	Version      int             `json:"version"`
	ChangedBy    string          `json:"changed_by,omitempty"`
	ChangeReason string          `json:"change_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	ResourceType string                 `json:"resource_type"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *TemplateVersion) error
	GetVersions(ctx context.Context, templateID string) ([]TemplateVersion, error)
	GetVersion(ctx context.Context, templateID string, version int) (*TemplateVersion, error)
	GetNextVersion(ctx context.Context, templateID string) (int, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, resourceID *string, resourceType string, limit int) ([]AuditLog, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *TemplateVersion) (err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StoreTemplates, constants.DatabasePostgres, "create_version", start, err)
	}(time.Now())

	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO template_versions (id, template_id, template_data, version, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		version.ID, version.TemplateID, []byte(version.TemplateData),
		version.Version, version.ChangedBy, version.ChangeReason, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template version: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, templateID string) ([]TemplateVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, template_data, version, changed_by, change_reason, created_at
		FROM template_versions
		WHERE template_id = $1
		ORDER BY version DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	versions := []TemplateVersion{}
	for rows.Next() {
		var v TemplateVersion
		var data []byte
		if err := rows.Scan(&v.ID, &v.TemplateID, &data, &v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.TemplateData = data
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *postgresVersioningRepository) GetVersion(ctx context.Context, templateID string, version int) (*TemplateVersion, error) {
	var v TemplateVersion
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, template_data, version, changed_by, change_reason, created_at
		FROM template_versions
		WHERE template_id = $1 AND version = $2
	`, templateID, version).Scan(&v.ID, &v.TemplateID, &data, &v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("template %s has no version %d", templateID, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	v.TemplateData = data
	return &v, nil
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, templateID string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM template_versions WHERE template_id = $1`, templateID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get next version: %w", err)
	}
	return version, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	oldValueJSON, err := marshalNullable(log.OldValue)
	if err != nil {
		return fmt.Errorf("failed to marshal old value: %w", err)
	}
	newValueJSON, err := marshalNullable(log.NewValue)
	if err != nil {
		return fmt.Errorf("failed to marshal new value: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, resource_id, resource_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		log.ID, log.ResourceID, log.ResourceType, log.Action,
		oldValueJSON, newValueJSON, log.ChangedBy, nullString(log.ChangeReason), nullString(log.IPAddress), log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, resourceID *string, resourceType string, limit int) ([]AuditLog, error) {
	const columns = `id, resource_id, resource_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp`

	var (
		query string
		args  []interface{}
	)
	switch {
	case resourceID != nil:
		query = `SELECT ` + columns + ` FROM audit_logs WHERE resource_id = $1 ORDER BY timestamp DESC LIMIT $2`
		args = []interface{}{*resourceID, limit}
	case resourceType != "":
		query = `SELECT ` + columns + ` FROM audit_logs WHERE resource_type = $1 ORDER BY timestamp DESC LIMIT $2`
		args = []interface{}{resourceType, limit}
	default:
		query = `SELECT ` + columns + ` FROM audit_logs ORDER BY timestamp DESC LIMIT $1`
		args = []interface{}{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		var (
			log                        AuditLog
			oldValueJSON, newValueJSON []byte
			reason, ip                 sql.NullString
		)
		if err := rows.Scan(
			&log.ID, &log.ResourceID, &log.ResourceType, &log.Action,
			&oldValueJSON, &newValueJSON, &log.ChangedBy, &reason, &ip, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.ChangeReason = reason.String
		log.IPAddress = ip.String

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}
		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func marshalNullable(v map[string]interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
