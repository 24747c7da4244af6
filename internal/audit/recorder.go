package audit

import (
	"context"
	"log/slog"

	"github.com/sharedlists/sharedlists/internal/db/models"
)

// Store persists audit entries
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Recorder stores each entry and then exports it. It satisfies the audit middleware's
// writer interface.
type Recorder struct {
	store   Store
	shipper Shipper
}

// NewRecorder creates a Recorder. shipper may be nil.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	return &Recorder{store: store, shipper: shipper}
}

// CreateAuditLog persists the entry. Export failures are logged and never fail the write;
// the database copy is the one the admin API reads.
func (r *Recorder) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		return err
	}
	if r.shipper == nil {
		return nil
	}
	if err := r.shipper.Ship(ctx, entry); err != nil {
		slog.Warn("audit export failed", "action", entry.Action, "error", err)
	}
	return nil
}
