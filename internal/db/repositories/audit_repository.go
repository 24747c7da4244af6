// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit log entries filtered by account, action, resource and time window.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	AccountID    *string
	Action       *string
	ResourceType *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	// Marshal metadata to JSONB
	var metadataJSON []byte
	var err error
	if log.Metadata != nil {
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_logs (id, account_id, action, resource_type, resource_id, metadata, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.AccountID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		metadataJSON,
		log.IPAddress,
		log.CreatedAt,
	)

	return err
}

const auditColumns = `id, account_id, action, resource_type, resource_id, metadata, ip_address, created_at`

// where renders the filters as a WHERE clause with positional parameters
func (f AuditFilters) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.AccountID != nil {
		add("account_id = $%d", *f.AccountID)
	}
	if f.Action != nil {
		add("action = $%d", *f.Action)
	}
	if f.ResourceType != nil {
		add("resource_type = $%d", *f.ResourceType)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAuditLogs returns a page of audit entries, newest first, and the total matching the filters
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	where, args := filters.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		auditColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, entry)
	}
	return logs, total, rows.Err()
}

// GetAuditLog returns one audit entry, or nil when there is none with that id
func (r *AuditRepository) GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, logID)
	entry, err := scanAuditLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditLog(s scanner) (*models.AuditLog, error) {
	entry := &models.AuditLog{}
	var metadataJSON []byte
	if err := s.Scan(&entry.ID, &entry.AccountID, &entry.Action, &entry.ResourceType,
		&entry.ResourceID, &metadataJSON, &entry.IPAddress, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
	}
	return entry, nil
}
