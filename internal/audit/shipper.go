// Package audit records the audit trail of mutations. Every entry is stored in the
// database for the admin API and can additionally be exported to a JSON-lines file or
// an HTTP webhook, so a log aggregator can keep its own copy with its own retention.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

// Shipper exports audit entries to one destination
type Shipper interface {
	Ship(ctx context.Context, entry *models.AuditLog) error
	Close() error
}

// MultiShipper ships to every configured destination
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewShippers builds the exporters enabled in cfg. With neither a file path nor a
// webhook URL the result ships nowhere.
func NewShippers(cfg config.AuditConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}

	if cfg.File.Path != "" {
		fs, err := NewFileShipper(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file shipper: %w", err)
		}
		ms.shippers = append(ms.shippers, fs)
	}
	if cfg.Webhook.URL != "" {
		ms.shippers = append(ms.shippers, NewWebhookShipper(cfg.Webhook))
	}
	return ms, nil
}

// Len returns the number of destinations
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends an entry to all destinations. A failing destination does not stop the others.
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all destinations
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookShipper posts audit entries to an HTTP endpoint, one at a time or in batches
type WebhookShipper struct {
	cfg       config.AuditWebhookConfig
	client    *http.Client
	batchCh   chan *models.AuditLog
	batch     []*models.AuditLog
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a webhook shipper. A positive BatchSize starts a goroutine
// that flushes when the batch fills or every FlushInterval.
func NewWebhookShipper(cfg config.AuditWebhookConfig) *WebhookShipper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		batchCh: make(chan *models.AuditLog, 1000),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}

	if cfg.BatchSize > 0 {
		go ws.processBatches()
	} else {
		close(ws.done)
	}
	return ws
}

func (ws *WebhookShipper) processBatches() {
	defer close(ws.done)

	ticker := time.NewTicker(ws.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
		case <-ticker.C:
			ws.flushBatch()
		case <-ws.closeCh:
			for {
				select {
				case entry := <-ws.batchCh:
					ws.batch = append(ws.batch, entry)
				default:
					ws.flushBatch()
					return
				}
			}
		}
	}
}

func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}
	defer func() { ws.batch = ws.batch[:0] }()

	data, err := json.Marshal(ws.batch)
	if err != nil {
		slog.Error("failed to marshal audit batch", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.cfg.Timeout)
	defer cancel()

	if err := ws.send(ctx, data); err != nil {
		slog.Error("failed to send audit batch", "entries", len(ws.batch), "error", err)
	}
}

// Ship queues the entry when batching, otherwise posts it directly. A full queue
// falls back to a direct post.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	return ws.send(ctx, data)
}

func (ws *WebhookShipper) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes any queued entries and stops the batch goroutine
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
	})
	<-ws.done
	return nil
}

// FileShipper appends audit entries to a file as JSON lines, rotating it by size
type FileShipper struct {
	cfg  config.AuditFileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) the audit file for appending
func NewFileShipper(cfg config.AuditFileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

// Ship writes an entry to the file
func (fs *FileShipper) Ship(_ context.Context, entry *models.AuditLog) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Error("failed to rotate audit log", "path", fs.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, moves the live file to path.1 and reopens it
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
